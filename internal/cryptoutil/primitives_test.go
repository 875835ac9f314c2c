package cryptoutil

import "testing"

func TestECDHAgreement(t *testing.T) {
	aPriv, aPub, err := GenerateKexKeypair()
	if err != nil {
		t.Fatalf("GenerateKexKeypair: %v", err)
	}
	bPriv, bPub, err := GenerateKexKeypair()
	if err != nil {
		t.Fatalf("GenerateKexKeypair: %v", err)
	}

	sharedA, err := ECDH(aPriv, bPub)
	if err != nil {
		t.Fatalf("ECDH(a): %v", err)
	}
	sharedB, err := ECDH(bPriv, aPub)
	if err != nil {
		t.Fatalf("ECDH(b): %v", err)
	}
	if sharedA != sharedB {
		t.Fatalf("ECDH shared secrets do not match")
	}
}

func TestECDHRejectsZeroKey(t *testing.T) {
	priv, _, err := GenerateKexKeypair()
	if err != nil {
		t.Fatalf("GenerateKexKeypair: %v", err)
	}
	var zero [KeySize]byte
	if _, err := ECDH(priv, zero); err != ErrZeroPublicKey {
		t.Fatalf("expected ErrZeroPublicKey, got %v", err)
	}
}

func TestHKDFDeriveKeySeparation(t *testing.T) {
	ikm := []byte("shared-secret-material")
	salt := []byte("salt-value")

	k1, err := HKDFDeriveKey32(ikm, salt, "info-a")
	if err != nil {
		t.Fatalf("HKDFDeriveKey32: %v", err)
	}
	k2, err := HKDFDeriveKey32(ikm, salt, "info-b")
	if err != nil {
		t.Fatalf("HKDFDeriveKey32: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected distinct keys for distinct info labels")
	}

	k1Again, err := HKDFDeriveKey32(ikm, salt, "info-a")
	if err != nil {
		t.Fatalf("HKDFDeriveKey32: %v", err)
	}
	if k1 != k1Again {
		t.Fatalf("expected deterministic derivation for identical inputs")
	}
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	var key [KeySize]byte
	if err := RandomBytes(key[:]); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	var nonce [NonceSize]byte
	if err := RandomBytes(nonce[:]); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}

	plaintext := []byte("hello session")
	aad := []byte("envelope-aad")

	ciphertext, err := AEADSeal(key, nonce, plaintext, aad)
	if err != nil {
		t.Fatalf("AEADSeal: %v", err)
	}
	got, err := AEADOpen(key, nonce, ciphertext, aad)
	if err != nil {
		t.Fatalf("AEADOpen: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}

	ciphertext[0] ^= 0x01
	if _, err := AEADOpen(key, nonce, ciphertext, aad); err == nil {
		t.Fatalf("expected AEADOpen to fail on tampered ciphertext")
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateSigningKeypair()
	if err != nil {
		t.Fatalf("GenerateSigningKeypair: %v", err)
	}
	msg := []byte("sign me")
	sig := Sign(priv, msg)
	if !VerifySignature(pub, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
	sig[0] ^= 0x01
	if VerifySignature(pub, msg, sig) {
		t.Fatalf("expected tampered signature to fail verification")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	c := []byte{1, 2, 4}
	if !ConstantTimeEqual(a, b) {
		t.Fatalf("expected equal slices to compare equal")
	}
	if ConstantTimeEqual(a, c) {
		t.Fatalf("expected differing slices to compare unequal")
	}
	if ConstantTimeEqual(a, []byte{1, 2}) {
		t.Fatalf("expected differing lengths to compare unequal")
	}
}
