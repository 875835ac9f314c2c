package controlmsg

import (
	"testing"

	"github.com/zrc-project/zrc/internal/wire"
)

func TestNewTextInputEventNormalizesToNFC(t *testing.T) {
	decomposed := "é" // "e" + combining acute accent
	event := NewTextInputEvent(decomposed)
	if event.Text == decomposed {
		t.Fatalf("expected NFC normalization to change the byte representation")
	}
	composed := "é" // precomposed "é"
	if event.Text != composed {
		t.Fatalf("got %q, want %q", event.Text, composed)
	}
}

func TestCheckPermittedAllowsGrantedInputEvent(t *testing.T) {
	msg := ControlMsgV1{Kind: KindInputEvent, Input: InputEventV1{Kind: InputKindMouseMove, X: 1, Y: 2}}
	granted := wire.NewPermissionSet(wire.PermissionInput)
	if err := CheckPermitted(msg, granted); err != nil {
		t.Fatalf("CheckPermitted: %v", err)
	}
}

func TestCheckPermittedRejectsUngranted(t *testing.T) {
	msg := ControlMsgV1{Kind: KindInputEvent, Input: InputEventV1{Kind: InputKindKey, Keycode: 65, Down: true}}
	granted := wire.NewPermissionSet(wire.PermissionView)
	if err := CheckPermitted(msg, granted); err == nil {
		t.Fatalf("expected ungranted input permission to be rejected")
	}
}

func TestCheckPermittedAllowsPing(t *testing.T) {
	msg := ControlMsgV1{Kind: KindPing}
	if err := CheckPermitted(msg, wire.NewPermissionSet()); err != nil {
		t.Fatalf("CheckPermitted(ping): %v", err)
	}
}

func TestNewClipboardSetNormalizesTextPlain(t *testing.T) {
	msg := NewClipboardSet("text/plain", []byte("é"))
	if string(msg.ClipboardData) != "é" {
		t.Fatalf("expected clipboard text to be NFC-normalized, got %q", msg.ClipboardData)
	}
}
