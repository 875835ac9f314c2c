package envelope

import (
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/identity"
)

func mustKeypair(t *testing.T) *identity.Keypair {
	t.Helper()
	kp, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func TestSealOpenRoundTrip(t *testing.T) {
	sender := mustKeypair(t)
	recipient := mustKeypair(t)
	plaintext := []byte("pair_request_v1 payload")
	now := time.Unix(1_760_000_000, 0)

	env, err := Seal(sender, recipient.ID(), recipient.KexPub, "pair_request_v1", plaintext, now)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	encoded := env.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, senderID, err := Open(decoded, recipient.KexPriv)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
	if senderID != sender.ID() {
		t.Fatalf("sender id mismatch: got %s want %s", senderID, sender.ID())
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	sender := mustKeypair(t)
	recipient := mustKeypair(t)
	now := time.Unix(1_760_000_000, 0)

	env, err := Seal(sender, recipient.ID(), recipient.KexPub, "pair_request_v1", []byte("hello"), now)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	env.Ciphertext[0] ^= 0x01

	if _, _, err := Open(env, recipient.KexPriv); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for tampered ciphertext (signature verified first), got %v", err)
	}
}

func TestOpenRejectsEveryByteMutation(t *testing.T) {
	sender := mustKeypair(t)
	recipient := mustKeypair(t)
	now := time.Unix(1_760_000_000, 0)

	buildEnvelope := func() *Envelope {
		env, err := Seal(sender, recipient.ID(), recipient.KexPub, "pair_request_v1", []byte("payload"), now)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		return env
	}

	mutateAndCheck := func(name string, mutate func(*Envelope)) {
		t.Run(name, func(t *testing.T) {
			env := buildEnvelope()
			mutate(env)
			if _, _, err := Open(env, recipient.KexPriv); err == nil {
				t.Fatalf("expected mutation %s to cause Open to fail", name)
			}
		})
	}

	mutateAndCheck("header_envelope_id", func(e *Envelope) { e.Header.EnvelopeID[0] ^= 0x01 })
	mutateAndCheck("header_msg_type", func(e *Envelope) { e.Header.MsgType = "tampered_v1" })
	mutateAndCheck("kex_ephemeral", func(e *Envelope) { e.Kex.EphemeralPub[0] ^= 0x01 })
	mutateAndCheck("aad", func(e *Envelope) { e.AAD[0] ^= 0x01 })
	mutateAndCheck("ciphertext", func(e *Envelope) { e.Ciphertext[0] ^= 0x01 })
	mutateAndCheck("signature", func(e *Envelope) { e.Signature[0] ^= 0x01 })
}

func TestOpenRejectsMismatchedAAD(t *testing.T) {
	sender := mustKeypair(t)
	recipient := mustKeypair(t)
	other := mustKeypair(t)
	now := time.Unix(1_760_000_000, 0)

	envA, err := Seal(sender, recipient.ID(), recipient.KexPub, "pair_request_v1", []byte("A"), now)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	envB, err := Seal(sender, other.ID(), other.KexPub, "pair_request_v1", []byte("B"), now)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	envA.AAD = envB.AAD
	if _, _, err := Open(envA, recipient.KexPriv); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for swapped AAD, got %v", err)
	}
}

func TestOpenRejectsUnsupportedKexSuite(t *testing.T) {
	sender := mustKeypair(t)
	recipient := mustKeypair(t)
	now := time.Unix(1_760_000_000, 0)

	env, err := Seal(sender, recipient.ID(), recipient.KexPub, "pair_request_v1", []byte("hi"), now)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	env.Kex.KexSuite = 99
	if _, _, err := Open(env, recipient.KexPriv); err == nil {
		t.Fatalf("expected unsupported suite to be rejected")
	}
}
