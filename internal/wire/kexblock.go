package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for KexBlockV1. Frozen; never renumber (spec.md §6).
const (
	kexFieldCipherSuite Number = 1
	kexFieldKexSuite    Number = 2
	kexFieldEphemeral   Number = 3
)

// Number is a local alias kept for readability at call sites; it is the
// same type as protowire.Number.
type Number = protowire.Number

// KexBlockV1 names the cipher/kex suites and carries the sender's
// ephemeral public key for an envelope's key-exchange step.
type KexBlockV1 struct {
	CipherSuite    CipherSuite
	KexSuite       KexSuite
	EphemeralPub   []byte // 32 bytes for KexSuiteX25519

	Unknown []RawField
}

// Encode renders the kex block as protobuf wire bytes.
func (k *KexBlockV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, kexFieldCipherSuite, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.CipherSuite))
	b = protowire.AppendTag(b, kexFieldKexSuite, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.KexSuite))
	b = protowire.AppendTag(b, kexFieldEphemeral, protowire.BytesType)
	b = protowire.AppendBytes(b, k.EphemeralPub)
	for _, f := range k.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

// DecodeKexBlockV1 parses protobuf wire bytes produced by Encode.
func DecodeKexBlockV1(b []byte) (*KexBlockV1, error) {
	k := &KexBlockV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case kexFieldCipherSuite:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			k.CipherSuite = CipherSuite(v)
			b = b[n:]
		case kexFieldKexSuite:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			k.KexSuite = KexSuite(v)
			b = b[n:]
		case kexFieldEphemeral:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			k.EphemeralPub = append([]byte(nil), v...)
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			k.Unknown = append(k.Unknown, f)
			b = rest
		}
	}
	return k, nil
}
