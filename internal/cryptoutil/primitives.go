// Package cryptoutil provides the low-level cryptographic primitives used
// throughout the ZRC core: Ed25519 signatures, X25519 key exchange,
// ChaCha20-Poly1305 AEAD, and HKDF-SHA256 derivation. Higher-level packages
// (envelope, ticket, sessionaead) compose these primitives; none of them
// reach for crypto/x509 or any other crypto package directly.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of X25519 and ChaCha20-Poly1305 keys in bytes.
	KeySize = 32

	// NonceSize is the size of ChaCha20-Poly1305 nonces in bytes.
	NonceSize = 12

	// TagSize is the size of the Poly1305 authentication tag in bytes.
	TagSize = 16

	// SignPublicKeySize is the size of an Ed25519 public key in bytes.
	SignPublicKeySize = ed25519.PublicKeySize

	// SignPrivateKeySize is the size of an Ed25519 private key in bytes
	// (32-byte seed || 32-byte public key).
	SignPrivateKeySize = ed25519.PrivateKeySize

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = ed25519.SignatureSize
)

var zeroKey [KeySize]byte

// ErrZeroPublicKey is returned when an X25519 public key is all zeros.
var ErrZeroPublicKey = errors.New("cryptoutil: zero remote public key")

// ErrLowOrderPoint is returned when an ECDH result is all zeros, which
// indicates the remote key lies on a small-order subgroup.
var ErrLowOrderPoint = errors.New("cryptoutil: low-order ECDH result")

// GenerateKexKeypair generates a new X25519 keypair.
func GenerateKexKeypair() (priv, pub [KeySize]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return priv, pub, fmt.Errorf("cryptoutil: generate kex private key: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	curve25519.ScalarBaseMult(&pub, &priv)
	return priv, pub, nil
}

// ScalarBaseMultInto computes the X25519 public key corresponding to priv,
// writing it into pub. Used to recompute a public key from a persisted
// private key without storing the public key redundantly.
func ScalarBaseMultInto(pub *[KeySize]byte, priv *[KeySize]byte) {
	curve25519.ScalarBaseMult(pub, priv)
}

// ECDH performs an X25519 Diffie-Hellman exchange, rejecting zero and
// low-order inputs/outputs.
func ECDH(priv, remotePub [KeySize]byte) ([KeySize]byte, error) {
	var shared [KeySize]byte
	if remotePub == zeroKey {
		return shared, ErrZeroPublicKey
	}
	curve25519.ScalarMult(&shared, &priv, &remotePub)
	if shared == zeroKey {
		return shared, ErrLowOrderPoint
	}
	return shared, nil
}

// HKDFDerive derives `length` bytes from ikm using HKDF-SHA256 with the
// given salt and info label. salt may be nil.
func HKDFDerive(ikm, salt []byte, info string, length int) ([]byte, error) {
	out := make([]byte, length)
	r := hkdf.New(sha256.New, ikm, salt, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptoutil: hkdf derive: %w", err)
	}
	return out, nil
}

// HKDFDeriveKey32 is a convenience wrapper around HKDFDerive for the common
// case of deriving a single 32-byte AEAD key.
func HKDFDeriveKey32(ikm, salt []byte, info string) ([KeySize]byte, error) {
	var out [KeySize]byte
	b, err := HKDFDerive(ikm, salt, info, KeySize)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// AEADSeal seals plaintext with ChaCha20-Poly1305 under the given key,
// 12-byte nonce and additional data.
func AEADSeal(key [KeySize]byte, nonce [NonceSize]byte, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new aead: %w", err)
	}
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// AEADOpen opens a ChaCha20-Poly1305 ciphertext produced by AEADSeal.
func AEADOpen(key [KeySize]byte, nonce [NonceSize]byte, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aead open: %w", err)
	}
	return plaintext, nil
}

// SHA256Sum returns the SHA-256 digest of the concatenation of all inputs.
func SHA256Sum(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// GenerateSigningKeypair generates a new Ed25519 keypair.
func GenerateSigningKeypair() (priv [SignPrivateKeySize]byte, pub [SignPublicKeySize]byte, err error) {
	p, s, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, fmt.Errorf("cryptoutil: generate signing keypair: %w", err)
	}
	copy(pub[:], p)
	copy(priv[:], s)
	return priv, pub, nil
}

// Sign signs message with an Ed25519 private key.
func Sign(priv [SignPrivateKeySize]byte, message []byte) [SignatureSize]byte {
	sig := ed25519.Sign(ed25519.PrivateKey(priv[:]), message)
	var out [SignatureSize]byte
	copy(out[:], sig)
	return out
}

// VerifySignature verifies an Ed25519 signature.
func VerifySignature(pub [SignPublicKeySize]byte, message []byte, sig [SignatureSize]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig[:])
}

// RandomBytes fills b with cryptographically secure random bytes.
func RandomBytes(b []byte) error {
	_, err := io.ReadFull(rand.Reader, b)
	return err
}

// Random16 returns 16 cryptographically secure random bytes.
func Random16() ([16]byte, error) {
	var b [16]byte
	err := RandomBytes(b[:])
	return b, err
}

// Random32 returns 32 cryptographically secure random bytes.
func Random32() ([32]byte, error) {
	var b [32]byte
	err := RandomBytes(b[:])
	return b, err
}

// ZeroBytes overwrites every byte of b with zero. Callers defer this
// immediately after obtaining any secret byte slice.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Zero32 overwrites a 32-byte secret array with zero.
func Zero32(b *[32]byte) {
	for i := range b {
		b[i] = 0
	}
}

// Zero64 overwrites a 64-byte secret array with zero.
func Zero64(b *[64]byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeEqual is a constant-time byte-slice comparison, used for
// comparing MACs and signatures derived from secret material.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
