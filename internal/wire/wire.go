// Package wire hand-encodes the ZRC control-plane messages in standard
// protobuf wire format using google.golang.org/protobuf/encoding/protowire.
// No protoc-generated code runs in this environment, but the wire bytes
// produced here are a real, valid subset of protobuf: field numbers are
// frozen constants, unknown fields are preserved verbatim and re-emitted on
// RawFields so a verifier can sign/hash the exact bytes it received
// (spec.md §6, "Envelope on the wire").
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// KexSuite names the key-exchange algorithm used by an envelope's kex
// block. Only X25519 is implemented; the enum leaves room for a future
// hybrid PQC suite without migrating the envelope format (spec.md §9).
type KexSuite uint32

const (
	KexSuiteUnspecified KexSuite = 0
	KexSuiteX25519      KexSuite = 1
)

// CipherSuite names the AEAD algorithm used by an envelope's ciphertext.
type CipherSuite uint32

const (
	CipherSuiteUnspecified        CipherSuite = 0
	CipherSuiteChaCha20Poly1305V1 CipherSuite = 1
)

// ErrUnsupportedSuite is returned when a message names a kex or cipher
// suite this build does not implement.
var ErrUnsupportedSuite = fmt.Errorf("wire: unsupported suite")

// RawField is a field this decoder did not recognize, preserved so that a
// verifier can re-emit the exact bytes it received rather than silently
// stripping unknown fields before signature verification (spec.md §6).
type RawField struct {
	Num protowire.Number
	Typ protowire.Type
	Raw []byte // the field's encoded value bytes, not including the tag
}

// appendTagged re-emits a raw field's tag + value bytes verbatim.
func appendTagged(buf []byte, f RawField) []byte {
	buf = protowire.AppendTag(buf, f.Num, f.Typ)
	buf = append(buf, f.Raw...)
	return buf
}

// consumeUnknown captures one field's raw bytes (without its tag) for
// round-trip preservation, dispatching on wire type.
func consumeUnknown(num protowire.Number, typ protowire.Type, b []byte) (RawField, []byte, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return RawField{}, nil, protowire.ParseError(n)
		}
		var raw []byte
		raw = protowire.AppendVarint(raw, v)
		return RawField{Num: num, Typ: typ, Raw: raw}, b[n:], nil
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return RawField{}, nil, protowire.ParseError(n)
		}
		var raw []byte
		raw = protowire.AppendFixed32(raw, v)
		return RawField{Num: num, Typ: typ, Raw: raw}, b[n:], nil
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return RawField{}, nil, protowire.ParseError(n)
		}
		var raw []byte
		raw = protowire.AppendFixed64(raw, v)
		return RawField{Num: num, Typ: typ, Raw: raw}, b[n:], nil
	case protowire.BytesType:
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return RawField{}, nil, protowire.ParseError(n)
		}
		var raw []byte
		raw = protowire.AppendBytes(raw, v)
		return RawField{Num: num, Typ: typ, Raw: raw}, b[n:], nil
	default:
		n := protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return RawField{}, nil, protowire.ParseError(n)
		}
		raw := make([]byte, n)
		copy(raw, b[:n])
		return RawField{Num: num, Typ: typ, Raw: raw}, b[n:], nil
	}
}
