// Package envelope implements the signed+sealed container that carries any
// control-plane message over any transport (spec.md §4.2). Seal/Open are
// the only entry points; every other package that moves bytes between
// device and operator does so through this one.
package envelope

import (
	"errors"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/transcript"
	"github.com/zrc-project/zrc/internal/wire"
)

// Error kinds, matching spec.md §7's taxonomy for the envelope path. The
// open path recovers from none of them: a failure terminates processing.
var (
	ErrUnsupportedSuite = errors.New("envelope: unsupported kex suite")
	ErrBadSignature     = errors.New("envelope: signature verification failed")
	ErrDecryptFailed    = errors.New("envelope: AEAD decryption failed")
	ErrSenderIDMismatch = errors.New("envelope: sender_id does not match SHA256(sender_sign_pub)")
)

const (
	envKeyInfo   = "zrc_env_v1_key"
	envNonceInfo = "zrc_env_v1_nonce"
)

// Envelope is the decoded, in-memory form of an EnvelopeV1 wire message.
type Envelope struct {
	Header    *wire.HeaderV1
	Kex       *wire.KexBlockV1
	AAD       []byte
	Ciphertext []byte
	Signature [cryptoutil.SignatureSize]byte

	headerBytes []byte
	kexBytes    []byte
}

// Encode renders the envelope to its protobuf wire-format bytes, suitable
// for any ControlTransport.
func (e *Envelope) Encode() []byte {
	msg := &wire.EnvelopeV1{
		HeaderBytes: e.headerBytes,
		KexBytes:    e.kexBytes,
		AAD:         e.AAD,
		Ciphertext:  e.Ciphertext,
		Signature:   e.Signature[:],
	}
	return msg.Encode()
}

// Decode parses protobuf wire-format bytes into an Envelope without
// verifying or decrypting it. Call Open to do that.
func Decode(b []byte) (*Envelope, error) {
	msg, err := wire.DecodeEnvelopeV1(b)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}
	header, err := wire.DecodeHeaderV1(msg.HeaderBytes)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode header: %w", err)
	}
	kex, err := wire.DecodeKexBlockV1(msg.KexBytes)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode kex block: %w", err)
	}
	if len(msg.Signature) != cryptoutil.SignatureSize {
		return nil, fmt.Errorf("envelope: decode: signature has wrong length %d", len(msg.Signature))
	}
	e := &Envelope{
		Header:      header,
		Kex:         kex,
		AAD:         msg.AAD,
		Ciphertext:  msg.Ciphertext,
		headerBytes: msg.HeaderBytes,
		kexBytes:    msg.KexBytes,
	}
	copy(e.Signature[:], msg.Signature)
	return e, nil
}

// Seal builds a new envelope addressed to a single recipient (spec.md
// §4.2's seal algorithm; multi-recipient envelopes repeat this per
// recipient since each has a distinct kex-pub).
func Seal(sender *identity.Keypair, recipientID identity.ID32, recipientKexPub [cryptoutil.KeySize]byte, msgType string, plaintext []byte, now time.Time) (*Envelope, error) {
	envelopeID, err := cryptoutil.Random16()
	if err != nil {
		return nil, fmt.Errorf("envelope: seal: %w", err)
	}
	senderID := sender.ID()

	header := &wire.HeaderV1{
		EnvelopeID:    envelopeID[:],
		CreatedAt:     uint64(now.Unix()),
		SenderID:      senderID[:],
		SenderSignPub: sender.SignPub[:],
		RecipientIDs:  [][]byte{recipientID[:]},
		MsgType:       msgType,
	}
	headerBytes := header.Encode()

	aad := transcript.EnvelopeAADV1(header.EnvelopeID, header.CreatedAt, header.SenderID, header.MsgType, header.RecipientIDs)

	ephPriv, ephPub, err := cryptoutil.GenerateKexKeypair()
	if err != nil {
		return nil, fmt.Errorf("envelope: seal: generate ephemeral: %w", err)
	}
	defer cryptoutil.Zero32(&ephPriv)

	shared, err := cryptoutil.ECDH(ephPriv, recipientKexPub)
	if err != nil {
		return nil, fmt.Errorf("envelope: seal: ecdh: %w", err)
	}
	defer cryptoutil.Zero32(&shared)

	key, nonce, err := deriveKeyNonce(shared, envelopeID[:])
	if err != nil {
		return nil, fmt.Errorf("envelope: seal: %w", err)
	}
	defer cryptoutil.Zero32(&key)

	ciphertext, err := cryptoutil.AEADSeal(key, nonce, plaintext, aad)
	if err != nil {
		return nil, fmt.Errorf("envelope: seal: aead: %w", err)
	}

	kex := &wire.KexBlockV1{
		CipherSuite:  wire.CipherSuiteChaCha20Poly1305V1,
		KexSuite:     wire.KexSuiteX25519,
		EphemeralPub: ephPub[:],
	}
	kexBytes := kex.Encode()

	sigInput := cryptoutil.SHA256Sum(headerBytes, kexBytes, aad, ciphertext)
	sig := sender.Sign(sigInput[:])

	return &Envelope{
		Header:      header,
		Kex:         kex,
		AAD:         aad,
		Ciphertext:  ciphertext,
		Signature:   sig,
		headerBytes: headerBytes,
		kexBytes:    kexBytes,
	}, nil
}

// Open verifies and decrypts an envelope, returning the plaintext and the
// authenticated sender identifier. The steps are ordered exactly per
// spec.md §4.2: signature before decryption, AAD recomputation before
// using the carried AAD, sender-id binding last.
func Open(e *Envelope, recipientKexPriv [cryptoutil.KeySize]byte) ([]byte, identity.ID32, error) {
	var zeroID identity.ID32

	if e.Kex.KexSuite != wire.KexSuiteX25519 {
		return nil, zeroID, fmt.Errorf("%w: %d", ErrUnsupportedSuite, e.Kex.KexSuite)
	}
	if e.Kex.CipherSuite != wire.CipherSuiteChaCha20Poly1305V1 {
		return nil, zeroID, fmt.Errorf("%w: cipher suite %d", ErrUnsupportedSuite, e.Kex.CipherSuite)
	}
	if len(e.Header.SenderSignPub) != cryptoutil.SignPublicKeySize {
		return nil, zeroID, fmt.Errorf("envelope: open: sender_sign_pub has wrong length %d", len(e.Header.SenderSignPub))
	}

	var senderSignPub [cryptoutil.SignPublicKeySize]byte
	copy(senderSignPub[:], e.Header.SenderSignPub)

	sigInput := cryptoutil.SHA256Sum(e.headerBytes, e.kexBytes, e.AAD, e.Ciphertext)
	if !cryptoutil.VerifySignature(senderSignPub, sigInput[:], e.Signature) {
		return nil, zeroID, ErrBadSignature
	}

	recomputedAAD := transcript.EnvelopeAADV1(e.Header.EnvelopeID, e.Header.CreatedAt, e.Header.SenderID, e.Header.MsgType, e.Header.RecipientIDs)
	if !cryptoutil.ConstantTimeEqual(recomputedAAD, e.AAD) {
		return nil, zeroID, ErrBadSignature
	}

	if len(e.Kex.EphemeralPub) != cryptoutil.KeySize {
		return nil, zeroID, fmt.Errorf("envelope: open: ephemeral pub has wrong length %d", len(e.Kex.EphemeralPub))
	}
	var senderEphemeral [cryptoutil.KeySize]byte
	copy(senderEphemeral[:], e.Kex.EphemeralPub)

	shared, err := cryptoutil.ECDH(recipientKexPriv, senderEphemeral)
	if err != nil {
		return nil, zeroID, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	defer cryptoutil.Zero32(&shared)

	if len(e.Header.EnvelopeID) != 16 {
		return nil, zeroID, fmt.Errorf("envelope: open: envelope_id has wrong length %d", len(e.Header.EnvelopeID))
	}
	key, nonce, err := deriveKeyNonce(shared, e.Header.EnvelopeID)
	if err != nil {
		return nil, zeroID, fmt.Errorf("envelope: open: %w", err)
	}
	defer cryptoutil.Zero32(&key)

	plaintext, err := cryptoutil.AEADOpen(key, nonce, e.Ciphertext, e.AAD)
	if err != nil {
		return nil, zeroID, ErrDecryptFailed
	}

	if len(e.Header.SenderID) != 32 {
		return nil, zeroID, fmt.Errorf("envelope: open: sender_id has wrong length %d", len(e.Header.SenderID))
	}
	var claimedSenderID identity.ID32
	copy(claimedSenderID[:], e.Header.SenderID)
	if err := identity.VerifyID32(claimedSenderID, senderSignPub); err != nil {
		return nil, zeroID, ErrSenderIDMismatch
	}

	return plaintext, claimedSenderID, nil
}

// deriveKeyNonce derives the per-envelope AEAD key and nonce from an ECDH
// shared secret, salted by the envelope id (spec.md §4.2 step 4).
func deriveKeyNonce(shared [cryptoutil.KeySize]byte, envelopeID []byte) (key [cryptoutil.KeySize]byte, nonce [cryptoutil.NonceSize]byte, err error) {
	key, err = cryptoutil.HKDFDeriveKey32(shared[:], envelopeID, envKeyInfo)
	if err != nil {
		return key, nonce, fmt.Errorf("derive key: %w", err)
	}
	nonceBytes, err := cryptoutil.HKDFDerive(shared[:], envelopeID, envNonceInfo, cryptoutil.NonceSize)
	if err != nil {
		return key, nonce, fmt.Errorf("derive nonce: %w", err)
	}
	copy(nonce[:], nonceBytes)
	return key, nonce, nil
}
