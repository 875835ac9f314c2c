package controlmsg

import (
	"encoding/binary"
	"fmt"

	"github.com/zrc-project/zrc/internal/coreerr"
)

// Encode renders a ControlMsgV1 to the bytes a session AEAD frame carries
// as plaintext. This is deliberately a small hand-rolled tag+fields layout
// rather than the protowire codec the pairing/ticket/session-init messages
// use: these messages never cross a signature boundary, so there is
// nothing here for a generic field-numbered schema to buy.
func (m ControlMsgV1) Encode() []byte {
	switch m.Kind {
	case KindPing, KindPong:
		return []byte{byte(m.Kind)}
	case KindInputEvent:
		return append([]byte{byte(m.Kind)}, encodeInputEvent(m.Input)...)
	case KindClipboardGet:
		buf := []byte{byte(m.Kind)}
		return appendString16(buf, m.ClipboardMIME)
	case KindClipboardSet, KindClipboardData:
		buf := []byte{byte(m.Kind)}
		buf = appendString16(buf, m.ClipboardMIME)
		return appendBlob32(buf, m.ClipboardData)
	default:
		return []byte{byte(m.Kind)}
	}
}

// Decode parses bytes produced by Encode.
func Decode(b []byte) (ControlMsgV1, error) {
	if len(b) < 1 {
		return ControlMsgV1{}, coreerr.Decode("control message: empty payload")
	}
	kind := Kind(b[0])
	rest := b[1:]
	switch kind {
	case KindPing, KindPong:
		return ControlMsgV1{Kind: kind}, nil
	case KindInputEvent:
		ev, err := decodeInputEvent(rest)
		if err != nil {
			return ControlMsgV1{}, err
		}
		return ControlMsgV1{Kind: kind, Input: ev}, nil
	case KindClipboardGet:
		mime, _, err := consumeString16(rest)
		if err != nil {
			return ControlMsgV1{}, err
		}
		return ControlMsgV1{Kind: kind, ClipboardMIME: mime}, nil
	case KindClipboardSet, KindClipboardData:
		mime, rest, err := consumeString16(rest)
		if err != nil {
			return ControlMsgV1{}, err
		}
		data, _, err := consumeBlob32(rest)
		if err != nil {
			return ControlMsgV1{}, err
		}
		return ControlMsgV1{Kind: kind, ClipboardMIME: mime, ClipboardData: data}, nil
	default:
		return ControlMsgV1{}, coreerr.Decode(fmt.Sprintf("control message: unknown kind %d", kind))
	}
}

func encodeInputEvent(e InputEventV1) []byte {
	switch e.Kind {
	case InputKindMouseMove:
		buf := make([]byte, 1+4+4)
		buf[0] = byte(e.Kind)
		binary.BigEndian.PutUint32(buf[1:5], uint32(e.X))
		binary.BigEndian.PutUint32(buf[5:9], uint32(e.Y))
		return buf
	case InputKindMouseButton:
		down := byte(0)
		if e.Down {
			down = 1
		}
		return []byte{byte(e.Kind), byte(e.Button), down}
	case InputKindKey:
		buf := make([]byte, 1+4)
		buf[0] = byte(e.Kind)
		binary.BigEndian.PutUint32(buf[1:5], e.Keycode)
		return buf
	case InputKindText:
		buf := []byte{byte(e.Kind)}
		return appendString32(buf, e.Text)
	default:
		return []byte{byte(e.Kind)}
	}
}

func decodeInputEvent(b []byte) (InputEventV1, error) {
	if len(b) < 1 {
		return InputEventV1{}, coreerr.Decode("input event: empty payload")
	}
	kind := InputKind(b[0])
	rest := b[1:]
	switch kind {
	case InputKindMouseMove:
		if len(rest) != 8 {
			return InputEventV1{}, coreerr.Decode("input event: mouse_move wrong length")
		}
		x := int32(binary.BigEndian.Uint32(rest[0:4]))
		y := int32(binary.BigEndian.Uint32(rest[4:8]))
		return InputEventV1{Kind: kind, X: x, Y: y}, nil
	case InputKindMouseButton:
		if len(rest) != 2 {
			return InputEventV1{}, coreerr.Decode("input event: mouse_button wrong length")
		}
		return InputEventV1{Kind: kind, Button: MouseButton(rest[0]), Down: rest[1] != 0}, nil
	case InputKindKey:
		if len(rest) != 4 {
			return InputEventV1{}, coreerr.Decode("input event: key wrong length")
		}
		return InputEventV1{Kind: kind, Keycode: binary.BigEndian.Uint32(rest)}, nil
	case InputKindText:
		text, _, err := consumeString32(rest)
		if err != nil {
			return InputEventV1{}, err
		}
		return NewTextInputEvent(text), nil
	default:
		return InputEventV1{}, coreerr.Decode(fmt.Sprintf("input event: unknown kind %d", kind))
	}
}

func appendString16(buf []byte, s string) []byte {
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(s)))
	buf = append(buf, lenBuf...)
	return append(buf, s...)
}

func consumeString16(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, coreerr.Decode("control message: truncated string16 length")
	}
	n := int(binary.BigEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < n {
		return "", nil, coreerr.Decode("control message: truncated string16 body")
	}
	return string(b[:n]), b[n:], nil
}

func appendString32(buf []byte, s string) []byte {
	return appendBlob32(buf, []byte(s))
}

func consumeString32(b []byte) (string, []byte, error) {
	data, rest, err := consumeBlob32(b)
	if err != nil {
		return "", nil, err
	}
	return string(data), rest, nil
}

func appendBlob32(buf []byte, data []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	buf = append(buf, lenBuf...)
	return append(buf, data...)
}

func consumeBlob32(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, coreerr.Decode("control message: truncated blob32 length")
	}
	n := int(binary.BigEndian.Uint32(b[:4]))
	b = b[4:]
	if len(b) < n {
		return nil, nil, coreerr.Decode("control message: truncated blob32 body")
	}
	return append([]byte(nil), b[:n]...), b[n:], nil
}
