package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for PairRequestV1. Frozen; never renumber (spec.md §6).
const (
	prFieldOperatorID      Number = 1
	prFieldOperatorSignPub Number = 2
	prFieldOperatorKexPub  Number = 3
	prFieldDeviceID        Number = 4
	prFieldCreatedAt       Number = 5
	prFieldPairProof       Number = 6
	prFieldRequestSAS      Number = 7
)

// PairRequestV1 is the plaintext payload of an envelope with
// msg_type="pair_request_v1" (spec.md §4.3).
type PairRequestV1 struct {
	OperatorID      []byte
	OperatorSignPub []byte
	OperatorKexPub  []byte
	DeviceID        []byte
	CreatedAt       uint64
	PairProof       []byte // 32 bytes, HMAC-SHA256
	RequestSAS      bool

	Unknown []RawField
}

func (m *PairRequestV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, prFieldOperatorID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorID)
	b = protowire.AppendTag(b, prFieldOperatorSignPub, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorSignPub)
	b = protowire.AppendTag(b, prFieldOperatorKexPub, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorKexPub)
	b = protowire.AppendTag(b, prFieldDeviceID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.DeviceID)
	b = protowire.AppendTag(b, prFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, m.CreatedAt)
	b = protowire.AppendTag(b, prFieldPairProof, protowire.BytesType)
	b = protowire.AppendBytes(b, m.PairProof)
	b = protowire.AppendTag(b, prFieldRequestSAS, protowire.VarintType)
	if m.RequestSAS {
		b = protowire.AppendVarint(b, 1)
	} else {
		b = protowire.AppendVarint(b, 0)
	}
	for _, f := range m.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

func DecodePairRequestV1(b []byte) (*PairRequestV1, error) {
	m := &PairRequestV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case prFieldOperatorID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorID = append([]byte(nil), v...)
			b = b[n:]
		case prFieldOperatorSignPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorSignPub = append([]byte(nil), v...)
			b = b[n:]
		case prFieldOperatorKexPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorKexPub = append([]byte(nil), v...)
			b = b[n:]
		case prFieldDeviceID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.DeviceID = append([]byte(nil), v...)
			b = b[n:]
		case prFieldCreatedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.CreatedAt = v
			b = b[n:]
		case prFieldPairProof:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.PairProof = append([]byte(nil), v...)
			b = b[n:]
		case prFieldRequestSAS:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RequestSAS = v != 0
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			m.Unknown = append(m.Unknown, f)
			b = rest
		}
	}
	return m, nil
}

// Field numbers for PairReceiptV1. Frozen; never renumber (spec.md §6).
const (
	prcFieldPairingID       Number = 1
	prcFieldDeviceID        Number = 2
	prcFieldDeviceSignPub   Number = 3
	prcFieldDeviceKexPub    Number = 4
	prcFieldOperatorID      Number = 5
	prcFieldOperatorSignPub Number = 6
	prcFieldOperatorKexPub  Number = 7
	prcFieldPermissions     Number = 8
	prcFieldUnattended      Number = 9
	prcFieldIssuedAt        Number = 10
	prcFieldSignature       Number = 11
	prcFieldRequireConsent  Number = 12
)

// PairReceiptV1 is the plaintext payload of an envelope with
// msg_type="pair_receipt_v1" (spec.md §4.3 step 5-6). Signature covers the
// encoding of this message with the Signature field cleared.
type PairReceiptV1 struct {
	PairingID       []byte // 16 bytes
	DeviceID        []byte
	DeviceSignPub   []byte
	DeviceKexPub    []byte
	OperatorID      []byte
	OperatorSignPub []byte
	OperatorKexPub  []byte
	Permissions           []Permission
	Unattended            bool
	RequireConsentEach    bool
	IssuedAt              uint64
	Signature             []byte // 64 bytes, empty when building the signing input

	Unknown []RawField
}

func (m *PairReceiptV1) WithoutSignature() *PairReceiptV1 {
	clone := *m
	clone.Signature = nil
	return &clone
}

func (m *PairReceiptV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, prcFieldPairingID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.PairingID)
	b = protowire.AppendTag(b, prcFieldDeviceID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.DeviceID)
	b = protowire.AppendTag(b, prcFieldDeviceSignPub, protowire.BytesType)
	b = protowire.AppendBytes(b, m.DeviceSignPub)
	b = protowire.AppendTag(b, prcFieldDeviceKexPub, protowire.BytesType)
	b = protowire.AppendBytes(b, m.DeviceKexPub)
	b = protowire.AppendTag(b, prcFieldOperatorID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorID)
	b = protowire.AppendTag(b, prcFieldOperatorSignPub, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorSignPub)
	b = protowire.AppendTag(b, prcFieldOperatorKexPub, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorKexPub)
	for _, p := range m.Permissions {
		b = protowire.AppendTag(b, prcFieldPermissions, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(p))
	}
	b = protowire.AppendTag(b, prcFieldUnattended, protowire.VarintType)
	if m.Unattended {
		b = protowire.AppendVarint(b, 1)
	} else {
		b = protowire.AppendVarint(b, 0)
	}
	b = protowire.AppendTag(b, prcFieldIssuedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, m.IssuedAt)
	b = protowire.AppendTag(b, prcFieldRequireConsent, protowire.VarintType)
	if m.RequireConsentEach {
		b = protowire.AppendVarint(b, 1)
	} else {
		b = protowire.AppendVarint(b, 0)
	}
	if len(m.Signature) > 0 {
		b = protowire.AppendTag(b, prcFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Signature)
	}
	for _, f := range m.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

func DecodePairReceiptV1(b []byte) (*PairReceiptV1, error) {
	m := &PairReceiptV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case prcFieldPairingID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.PairingID = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldDeviceID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.DeviceID = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldDeviceSignPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.DeviceSignPub = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldDeviceKexPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.DeviceKexPub = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldOperatorID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorID = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldOperatorSignPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorSignPub = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldOperatorKexPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorKexPub = append([]byte(nil), v...)
			b = b[n:]
		case prcFieldPermissions:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Permissions = append(m.Permissions, Permission(v))
			b = b[n:]
		case prcFieldUnattended:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Unattended = v != 0
			b = b[n:]
		case prcFieldIssuedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.IssuedAt = v
			b = b[n:]
		case prcFieldRequireConsent:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RequireConsentEach = v != 0
			b = b[n:]
		case prcFieldSignature:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Signature = append([]byte(nil), v...)
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			m.Unknown = append(m.Unknown, f)
			b = rest
		}
	}
	return m, nil
}
