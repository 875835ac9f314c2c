// Package controlmsg implements the post-upgrade Control-channel tagged
// union (spec.md §4.7): input events, clipboard operations, and
// keepalives, all carried as plain structs and dispatched by a Kind tag
// rather than a wire encoding of their own (they ride inside session AEAD
// frames, so no further framing or signing is needed here).
package controlmsg

import (
	"golang.org/x/text/unicode/norm"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/wire"
)

// Kind tags a ControlMsgV1 variant.
type Kind uint8

const (
	KindPing Kind = iota + 1
	KindPong
	KindInputEvent
	KindClipboardSet
	KindClipboardGet
	KindClipboardData
)

// InputKind tags an InputEventV1 variant.
type InputKind uint8

const (
	InputKindMouseMove InputKind = iota + 1
	InputKindMouseButton
	InputKindKey
	InputKindText
)

// MouseButton identifies which physical button an InputEventV1 reports
// (spec.md §4.7: "button∈{1,2,3}").
type MouseButton uint8

const (
	MouseButtonLeft   MouseButton = 1
	MouseButtonRight  MouseButton = 2
	MouseButtonMiddle MouseButton = 3
)

// InputEventV1 is the tagged union of input operations the device applies
// through the Input sink collaborator (spec.md §6).
type InputEventV1 struct {
	Kind InputKind

	// MouseMove
	X, Y int32 // absolute pixel coordinates in display space

	// MouseButton
	Button MouseButton
	Down   bool

	// Key
	Keycode uint32 // OS-specific; interpreted at the platform shim boundary

	// Text
	Text string // NFC-normalized UTF-8
}

// NewTextInputEvent builds a Text input event, normalizing to NFC so that
// the same logical keystroke sequence produces identical bytes regardless
// of the controller OS's native normalization form.
func NewTextInputEvent(text string) InputEventV1 {
	return InputEventV1{Kind: InputKindText, Text: norm.NFC.String(text)}
}

// RequiredPermission reports which granted permission an input event
// requires, so the device can enforce spec.md §4.7's "MUST ignore input
// events whose effective permission is not present in the active ticket".
func (e InputEventV1) RequiredPermission() wire.Permission {
	return wire.PermissionInput
}

// ControlMsgV1 is the tagged union carried on the Control channel after
// the session AEAD handshake completes.
type ControlMsgV1 struct {
	Kind Kind

	// InputEvent
	Input InputEventV1

	// ClipboardSet / ClipboardData
	ClipboardData []byte
	ClipboardMIME string
}

// NewClipboardSet builds a ClipboardSet message, normalizing text payloads
// to NFC (spec.md §4.7's normalization applies to clipboard text as well
// as InputEvent Text, since both cross the same controller/device OS
// boundary).
func NewClipboardSet(mime string, data []byte) ControlMsgV1 {
	if mime == "text/plain" || mime == "" {
		data = []byte(norm.NFC.String(string(data)))
	}
	return ControlMsgV1{Kind: KindClipboardSet, ClipboardMIME: mime, ClipboardData: data}
}

// RequiredPermission reports which granted permission a control message
// requires. Ping/Pong require none.
func (m ControlMsgV1) RequiredPermission() (wire.Permission, bool) {
	switch m.Kind {
	case KindInputEvent:
		return m.Input.RequiredPermission(), true
	case KindClipboardSet, KindClipboardGet, KindClipboardData:
		return wire.PermissionClipboard, true
	default:
		return "", false
	}
}

// CheckPermitted enforces spec.md §4.7's permission gate: a message whose
// required permission is absent from grantedPermissions must be ignored,
// not merely logged.
func CheckPermitted(m ControlMsgV1, granted wire.PermissionSet) error {
	perm, required := m.RequiredPermission()
	if !required {
		return nil
	}
	if !granted.Contains(perm) {
		return coreerr.Denied("control message requires permission " + string(perm) + " which is not granted")
	}
	return nil
}
