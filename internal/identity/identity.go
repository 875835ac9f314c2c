// Package identity implements the ZRC long-term identity model: a signing
// keypair, a key-exchange keypair, and the stable 32-byte identifier derived
// from the signing public key. See spec.md §3 "Identities".
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zrc-project/zrc/internal/cryptoutil"
)

// ID32 is a peer's stable identifier: SHA256(sign_pub).
type ID32 [32]byte

// DeriveID32 computes the stable identifier for a signing public key.
func DeriveID32(signPub [cryptoutil.SignPublicKeySize]byte) ID32 {
	return ID32(cryptoutil.SHA256Sum(signPub[:]))
}

// String renders the identifier as lowercase hex.
func (id ID32) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString renders the first 8 hex characters, for log lines.
func (id ID32) ShortString() string {
	return hex.EncodeToString(id[:4])
}

// Bytes returns the identifier's raw bytes.
func (id ID32) Bytes() []byte {
	return id[:]
}

// IsZero reports whether id is the zero value.
func (id ID32) IsZero() bool {
	return id == ID32{}
}

// Equal reports whether two identifiers are equal.
func (id ID32) Equal(other ID32) bool {
	return id == other
}

// ParseID32 decodes a hex-encoded identifier.
func ParseID32(s string) (ID32, error) {
	var id ID32
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("identity: parse id32: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("identity: parse id32: want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Role distinguishes which side of a pairing a Keypair is acting as.
// Device and operator share the same key types; only the role differs.
type Role string

const (
	RoleDevice   Role = "device"
	RoleOperator Role = "operator"
)

// Keypair bundles a peer's two long-term keypairs: Ed25519-class signing
// keys and X25519-class key-exchange keys.
type Keypair struct {
	SignPriv [cryptoutil.SignPrivateKeySize]byte
	SignPub  [cryptoutil.SignPublicKeySize]byte
	KexPriv  [cryptoutil.KeySize]byte
	KexPub   [cryptoutil.KeySize]byte
}

// GenerateKeypair creates a fresh long-term identity keypair.
func GenerateKeypair() (*Keypair, error) {
	signPriv, signPub, err := cryptoutil.GenerateSigningKeypair()
	if err != nil {
		return nil, fmt.Errorf("identity: generate signing keypair: %w", err)
	}
	kexPriv, kexPub, err := cryptoutil.GenerateKexKeypair()
	if err != nil {
		return nil, fmt.Errorf("identity: generate kex keypair: %w", err)
	}
	return &Keypair{
		SignPriv: signPriv,
		SignPub:  signPub,
		KexPriv:  kexPriv,
		KexPub:   kexPub,
	}, nil
}

// ID returns the stable identifier derived from the signing public key.
func (k *Keypair) ID() ID32 {
	return DeriveID32(k.SignPub)
}

// Sign signs message with the keypair's signing private key.
func (k *Keypair) Sign(message []byte) [cryptoutil.SignatureSize]byte {
	return cryptoutil.Sign(k.SignPriv, message)
}

// Zero wipes all secret key material held by the keypair. Callers must not
// use the keypair after calling Zero.
func (k *Keypair) Zero() {
	cryptoutil.Zero64(&k.SignPriv)
	cryptoutil.Zero32(&k.KexPriv)
}

// ErrSignPubMismatch is returned when a claimed identifier does not match
// the SHA256 of the corresponding signing public key.
var ErrSignPubMismatch = errors.New("identity: sign_pub does not match claimed id32")

// VerifyID32 checks that id == SHA256(signPub), the binding every envelope,
// pairing, and ticket operation relies on (spec.md P1).
func VerifyID32(id ID32, signPub [cryptoutil.SignPublicKeySize]byte) error {
	if DeriveID32(signPub) != id {
		return ErrSignPubMismatch
	}
	return nil
}
