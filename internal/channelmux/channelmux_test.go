package channelmux

import (
	"bytes"
	"testing"

	"github.com/zrc-project/zrc/internal/wire"
)

func TestFramePacketRoundTrip(t *testing.T) {
	pixels := bytes.Repeat([]byte{0x42}, 64)
	f := FramePacket{Width: 4, Height: 4, Stride: 16, Format: PixelFormatBGRA8888, Pixels: pixels}
	encoded := EncodeFramePacket(f)

	decoded, err := DecodeFramePacket(encoded)
	if err != nil {
		t.Fatalf("DecodeFramePacket: %v", err)
	}
	if decoded.Width != f.Width || decoded.Height != f.Height || decoded.Stride != f.Stride || decoded.Format != f.Format {
		t.Fatalf("header mismatch: got %+v", decoded)
	}
	if !bytes.Equal(decoded.Pixels, pixels) {
		t.Fatalf("pixel payload mismatch")
	}
}

func TestDecodeFramePacketRejectsShortHeader(t *testing.T) {
	if _, err := DecodeFramePacket([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error on short packet")
	}
}

func TestDecodeFramePacketRejectsLengthMismatch(t *testing.T) {
	f := FramePacket{Width: 1, Height: 1, Stride: 4, Format: PixelFormatBGRA8888, Pixels: []byte{1, 2, 3, 4}}
	encoded := EncodeFramePacket(f)
	truncated := encoded[:len(encoded)-1]
	if _, err := DecodeFramePacket(truncated); err == nil {
		t.Fatalf("expected pixel_len mismatch to be rejected")
	}
}

func TestDeriveSessionKeysProducesIndependentDirections(t *testing.T) {
	tkt := &wire.SessionTicketV1{
		TicketID:       bytes.Repeat([]byte{0x01}, 16),
		SessionBinding: bytes.Repeat([]byte{0x02}, 32),
	}
	keys, err := DeriveSessionKeys(tkt)
	if err != nil {
		t.Fatalf("DeriveSessionKeys: %v", err)
	}
	defer keys.Zero()

	plaintext := []byte("ping")
	ciphertext, counter, err := keys.DeviceToOperator.Control.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := keys.OperatorToDevice.Control.Open(ciphertext, counter); err == nil {
		t.Fatalf("expected opposite-direction key to fail to open")
	}
	got, err := func() ([]byte, error) {
		mirror, err := DeriveSessionKeys(tkt)
		if err != nil {
			return nil, err
		}
		defer mirror.Zero()
		return mirror.DeviceToOperator.Control.Open(ciphertext, counter)
	}()
	if err != nil {
		t.Fatalf("Open with re-derived same-direction key: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch")
	}
}
