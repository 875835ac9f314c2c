package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for EnvelopeV1. Frozen; never renumber (spec.md §6).
const (
	envFieldHeader     Number = 1
	envFieldKex        Number = 2
	envFieldAAD        Number = 3
	envFieldCiphertext Number = 4
	envFieldSignature  Number = 5
)

// EnvelopeV1 is the universal signed+sealed wrapper (spec.md §3
// "Envelope"). HeaderBytes and KexBytes are kept as the exact encoded bytes
// received on the wire (not re-encoded from the parsed struct) so that
// signature verification covers precisely what was transmitted, per
// spec.md §6's "signature covers the exact received bytes" requirement.
type EnvelopeV1 struct {
	HeaderBytes []byte
	KexBytes    []byte
	AAD         []byte
	Ciphertext  []byte
	Signature   []byte // 64 bytes, Ed25519

	Unknown []RawField
}

// Encode renders the envelope as protobuf wire bytes.
func (e *EnvelopeV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, envFieldHeader, protowire.BytesType)
	b = protowire.AppendBytes(b, e.HeaderBytes)
	b = protowire.AppendTag(b, envFieldKex, protowire.BytesType)
	b = protowire.AppendBytes(b, e.KexBytes)
	b = protowire.AppendTag(b, envFieldAAD, protowire.BytesType)
	b = protowire.AppendBytes(b, e.AAD)
	b = protowire.AppendTag(b, envFieldCiphertext, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Ciphertext)
	b = protowire.AppendTag(b, envFieldSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Signature)
	for _, f := range e.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

// DecodeEnvelopeV1 parses protobuf wire bytes produced by Encode.
func DecodeEnvelopeV1(b []byte) (*EnvelopeV1, error) {
	e := &EnvelopeV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case envFieldHeader:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.HeaderBytes = append([]byte(nil), v...)
			b = b[n:]
		case envFieldKex:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.KexBytes = append([]byte(nil), v...)
			b = b[n:]
		case envFieldAAD:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.AAD = append([]byte(nil), v...)
			b = b[n:]
		case envFieldCiphertext:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Ciphertext = append([]byte(nil), v...)
			b = b[n:]
		case envFieldSignature:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Signature = append([]byte(nil), v...)
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			e.Unknown = append(e.Unknown, f)
			b = rest
		}
	}
	return e, nil
}
