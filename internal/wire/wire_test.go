package wire

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &HeaderV1{
		EnvelopeID:    bytes.Repeat([]byte{0x01}, 16),
		CreatedAt:     1_760_000_000,
		SenderID:      bytes.Repeat([]byte{0x02}, 32),
		SenderSignPub: bytes.Repeat([]byte{0x03}, 32),
		RecipientIDs:  [][]byte{bytes.Repeat([]byte{0x04}, 32), bytes.Repeat([]byte{0x05}, 32)},
		MsgType:       "pair_request_v1",
	}
	encoded := h.Encode()
	got, err := DecodeHeaderV1(encoded)
	if err != nil {
		t.Fatalf("DecodeHeaderV1: %v", err)
	}
	if !bytes.Equal(got.EnvelopeID, h.EnvelopeID) || got.CreatedAt != h.CreatedAt || got.MsgType != h.MsgType {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, h)
	}
	if len(got.RecipientIDs) != 2 || !bytes.Equal(got.RecipientIDs[0], h.RecipientIDs[0]) {
		t.Fatalf("recipient ids mismatch: %+v", got.RecipientIDs)
	}
}

func TestHeaderPreservesUnknownFields(t *testing.T) {
	h := &HeaderV1{
		EnvelopeID:    bytes.Repeat([]byte{0x01}, 16),
		CreatedAt:     1,
		SenderID:      bytes.Repeat([]byte{0x02}, 32),
		SenderSignPub: bytes.Repeat([]byte{0x03}, 32),
		MsgType:       "pair_request_v1",
	}
	encoded := h.Encode()

	// Append a field with a number this version doesn't recognize.
	encoded = protowire.AppendTag(encoded, 99, protowire.BytesType)
	encoded = protowire.AppendBytes(encoded, []byte("future-field"))

	decoded, err := DecodeHeaderV1(encoded)
	if err != nil {
		t.Fatalf("DecodeHeaderV1: %v", err)
	}
	if len(decoded.Unknown) != 1 {
		t.Fatalf("expected 1 unknown field, got %d", len(decoded.Unknown))
	}

	reencoded := decoded.Encode()
	redecoded, err := DecodeHeaderV1(reencoded)
	if err != nil {
		t.Fatalf("DecodeHeaderV1 (re-encoded): %v", err)
	}
	if len(redecoded.Unknown) != 1 {
		t.Fatalf("expected unknown field to survive re-encode")
	}
}

func TestKexBlockRoundTrip(t *testing.T) {
	k := &KexBlockV1{
		CipherSuite:  CipherSuiteChaCha20Poly1305V1,
		KexSuite:     KexSuiteX25519,
		EphemeralPub: bytes.Repeat([]byte{0x09}, 32),
	}
	got, err := DecodeKexBlockV1(k.Encode())
	if err != nil {
		t.Fatalf("DecodeKexBlockV1: %v", err)
	}
	if got.CipherSuite != k.CipherSuite || got.KexSuite != k.KexSuite || !bytes.Equal(got.EphemeralPub, k.EphemeralPub) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, k)
	}
}

func TestSessionTicketSignatureClearedForSigning(t *testing.T) {
	ticket := &SessionTicketV1{
		TicketID:          bytes.Repeat([]byte{0x01}, 16),
		DeviceID:          bytes.Repeat([]byte{0x02}, 32),
		DeviceSignPub:     bytes.Repeat([]byte{0x03}, 32),
		OperatorID:        bytes.Repeat([]byte{0x04}, 32),
		OperatorSignPub:   bytes.Repeat([]byte{0x05}, 32),
		Permissions:       []Permission{PermissionView, PermissionInput},
		IssuedAt:          1000,
		ExpiresAt:         1300,
		AllowedTransports: []string{"quic"},
		RequireConsent:    false,
		SessionBinding:    bytes.Repeat([]byte{0x06}, 32),
	}
	signingBytes := ticket.WithoutSignature().Encode()

	ticket.Signature = bytes.Repeat([]byte{0xFF}, 64)
	signed := ticket.Encode()
	if bytes.Equal(signingBytes, signed) {
		t.Fatalf("expected signed encoding to differ from signing-input encoding")
	}

	decoded, err := DecodeSessionTicketV1(signed)
	if err != nil {
		t.Fatalf("DecodeSessionTicketV1: %v", err)
	}
	if len(decoded.Permissions) != 2 || decoded.Permissions[0] != PermissionView {
		t.Fatalf("permissions mismatch: %+v", decoded.Permissions)
	}
	if !bytes.Equal(decoded.WithoutSignature().Encode(), signingBytes) {
		t.Fatalf("expected WithoutSignature().Encode() to reproduce the signing bytes")
	}
}

func TestSessionInitRequestCarriesEmbeddedTicket(t *testing.T) {
	ticket := &SessionTicketV1{
		TicketID:       bytes.Repeat([]byte{0x01}, 16),
		DeviceID:       bytes.Repeat([]byte{0x02}, 32),
		SessionBinding: bytes.Repeat([]byte{0x03}, 32),
		Signature:      bytes.Repeat([]byte{0xAA}, 64),
	}
	req := &SessionInitRequestV1{
		SessionID:           bytes.Repeat([]byte{0x10}, 16),
		DeviceID:            bytes.Repeat([]byte{0x02}, 32),
		OperatorID:          bytes.Repeat([]byte{0x11}, 32),
		Ticket:              ticket,
		TransportPreference: "quic",
		CreatedAt:           1_760_000_000,
		TicketBindingNonce:  bytes.Repeat([]byte{0x12}, 16),
	}
	decoded, err := DecodeSessionInitRequestV1(req.Encode())
	if err != nil {
		t.Fatalf("DecodeSessionInitRequestV1: %v", err)
	}
	if decoded.Ticket == nil || !bytes.Equal(decoded.Ticket.TicketID, ticket.TicketID) {
		t.Fatalf("expected embedded ticket to round trip, got %+v", decoded.Ticket)
	}
}
