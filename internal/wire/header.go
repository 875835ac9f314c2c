package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for HeaderV1. Frozen; never renumber (spec.md §6).
const (
	headerFieldEnvelopeID    protowire.Number = 1
	headerFieldCreatedAt     protowire.Number = 2
	headerFieldSenderID      protowire.Number = 3
	headerFieldSenderSignPub protowire.Number = 4
	headerFieldRecipientIDs  protowire.Number = 5
	headerFieldMsgType       protowire.Number = 6
)

// HeaderV1 is an envelope's header: identifies the envelope, its sender,
// its intended recipients, and the message-type tag a dispatcher routes on.
type HeaderV1 struct {
	EnvelopeID    []byte   // 16 bytes
	CreatedAt     uint64   // Unix seconds
	SenderID      []byte   // 32 bytes, SHA256(SenderSignPub)
	SenderSignPub []byte   // 32 bytes
	RecipientIDs  [][]byte // ordered, each 32 bytes
	MsgType       string

	Unknown []RawField // preserved verbatim, never stripped before verification
}

// Encode renders the header as protobuf wire bytes.
func (h *HeaderV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, headerFieldEnvelopeID, protowire.BytesType)
	b = protowire.AppendBytes(b, h.EnvelopeID)
	b = protowire.AppendTag(b, headerFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, h.CreatedAt)
	b = protowire.AppendTag(b, headerFieldSenderID, protowire.BytesType)
	b = protowire.AppendBytes(b, h.SenderID)
	b = protowire.AppendTag(b, headerFieldSenderSignPub, protowire.BytesType)
	b = protowire.AppendBytes(b, h.SenderSignPub)
	for _, rid := range h.RecipientIDs {
		b = protowire.AppendTag(b, headerFieldRecipientIDs, protowire.BytesType)
		b = protowire.AppendBytes(b, rid)
	}
	b = protowire.AppendTag(b, headerFieldMsgType, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(h.MsgType))
	for _, f := range h.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

// DecodeHeaderV1 parses protobuf wire bytes produced by Encode, preserving
// any fields it does not recognize.
func DecodeHeaderV1(b []byte) (*HeaderV1, error) {
	h := &HeaderV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case headerFieldEnvelopeID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			h.EnvelopeID = append([]byte(nil), v...)
			b = b[n:]
		case headerFieldCreatedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			h.CreatedAt = v
			b = b[n:]
		case headerFieldSenderID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			h.SenderID = append([]byte(nil), v...)
			b = b[n:]
		case headerFieldSenderSignPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			h.SenderSignPub = append([]byte(nil), v...)
			b = b[n:]
		case headerFieldRecipientIDs:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			h.RecipientIDs = append(h.RecipientIDs, append([]byte(nil), v...))
			b = b[n:]
		case headerFieldMsgType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			h.MsgType = string(v)
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			h.Unknown = append(h.Unknown, f)
			b = rest
		}
	}
	return h, nil
}
