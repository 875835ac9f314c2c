// Package transcript implements the canonical tag-length-value byte builder
// used wherever bytes feed a hash, signature, HMAC, or AEAD AAD (spec.md
// §4.1). The transcript is deliberately independent of any protobuf
// encoding so that wire-format ambiguity (default-vs-omitted fields,
// wire-type quirks) can never influence a security-critical digest.
package transcript

import (
	"encoding/binary"
)

// Tag identifies a single field within a transcript. Tags are fixed per
// transcript kind and MUST NOT be renumbered after release.
type Tag uint32

// Builder accumulates canonical TLV-encoded fields. The zero value is not
// usable; construct with New.
type Builder struct {
	buf []byte
}

// New starts a new transcript whose bytes begin with the given ASCII
// domain-separation label, written as-is ahead of the TLV fields.
func New(domain string) *Builder {
	b := &Builder{buf: make([]byte, 0, 256)}
	b.buf = append(b.buf, domain...)
	return b
}

// Bytes appends tag_u32_be || len_u32_be || bytes.
func (b *Builder) Bytes(tag Tag, value []byte) *Builder {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(tag))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(value)))
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, value...)
	return b
}

// Uint64 appends tag_u32_be || 8 || value_u64_be.
func (b *Builder) Uint64(tag Tag, value uint64) *Builder {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(tag))
	binary.BigEndian.PutUint32(hdr[4:8], 8)
	b.buf = append(b.buf, hdr[:]...)
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], value)
	b.buf = append(b.buf, v[:]...)
	return b
}

// Bool appends tag_u32_be || 1 || 0|1.
func (b *Builder) Bool(tag Tag, value bool) *Builder {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(tag))
	binary.BigEndian.PutUint32(hdr[4:8], 1)
	b.buf = append(b.buf, hdr[:]...)
	if value {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
	return b
}

// BytesList appends each element of values in order under the same tag,
// used for ordered recipient-id lists.
func (b *Builder) BytesList(tag Tag, values [][]byte) *Builder {
	for _, v := range values {
		b.Bytes(tag, v)
	}
	return b
}

// Raw appends a previously built transcript's bytes verbatim, with no tag
// or length. The kinds in this package do not use it: zrc_pair_sas_v1
// embeds pair_request_fields_without_proof as a tagged Bytes field.
func (b *Builder) Raw(value []byte) *Builder {
	b.buf = append(b.buf, value...)
	return b
}

// Build returns a copy of the accumulated canonical byte stream.
func (b *Builder) Build() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
