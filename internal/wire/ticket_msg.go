package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for SessionTicketV1. Frozen; never renumber (spec.md §6).
const (
	ticketFieldTicketID        Number = 1
	ticketFieldDeviceID        Number = 2
	ticketFieldDeviceSignPub   Number = 3
	ticketFieldOperatorID      Number = 4
	ticketFieldOperatorSignPub Number = 5
	ticketFieldPermissions     Number = 6
	ticketFieldIssuedAt        Number = 7
	ticketFieldExpiresAt       Number = 8
	ticketFieldAllowedTransports Number = 9
	ticketFieldRequireConsent  Number = 10
	ticketFieldSessionBinding  Number = 11
	ticketFieldSignature       Number = 12
)

// SessionTicketV1 is the short-lived, device-signed capability described in
// spec.md §3 "Session ticket". Signature covers the encoding of this
// message with the Signature field cleared.
type SessionTicketV1 struct {
	TicketID          []byte // 16 bytes
	DeviceID          []byte // 32 bytes
	DeviceSignPub     []byte // 32 bytes
	OperatorID        []byte // 32 bytes
	OperatorSignPub   []byte // 32 bytes
	Permissions       []Permission
	IssuedAt          uint64
	ExpiresAt         uint64
	AllowedTransports []string
	RequireConsent    bool
	SessionBinding    []byte // 32 bytes
	Signature         []byte // 64 bytes, empty when building the signing input

	Unknown []RawField
}

// Encode renders the ticket as protobuf wire bytes. When Signature is nil
// the field is simply omitted, which is how the signing-input bytes are
// produced (spec.md §4.4: "signature covers the ticket with the signature
// field cleared").
func (t *SessionTicketV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, ticketFieldTicketID, protowire.BytesType)
	b = protowire.AppendBytes(b, t.TicketID)
	b = protowire.AppendTag(b, ticketFieldDeviceID, protowire.BytesType)
	b = protowire.AppendBytes(b, t.DeviceID)
	b = protowire.AppendTag(b, ticketFieldDeviceSignPub, protowire.BytesType)
	b = protowire.AppendBytes(b, t.DeviceSignPub)
	b = protowire.AppendTag(b, ticketFieldOperatorID, protowire.BytesType)
	b = protowire.AppendBytes(b, t.OperatorID)
	b = protowire.AppendTag(b, ticketFieldOperatorSignPub, protowire.BytesType)
	b = protowire.AppendBytes(b, t.OperatorSignPub)
	for _, p := range t.Permissions {
		b = protowire.AppendTag(b, ticketFieldPermissions, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(p))
	}
	b = protowire.AppendTag(b, ticketFieldIssuedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, t.IssuedAt)
	b = protowire.AppendTag(b, ticketFieldExpiresAt, protowire.VarintType)
	b = protowire.AppendVarint(b, t.ExpiresAt)
	for _, tr := range t.AllowedTransports {
		b = protowire.AppendTag(b, ticketFieldAllowedTransports, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(tr))
	}
	b = protowire.AppendTag(b, ticketFieldRequireConsent, protowire.VarintType)
	if t.RequireConsent {
		b = protowire.AppendVarint(b, 1)
	} else {
		b = protowire.AppendVarint(b, 0)
	}
	b = protowire.AppendTag(b, ticketFieldSessionBinding, protowire.BytesType)
	b = protowire.AppendBytes(b, t.SessionBinding)
	if len(t.Signature) > 0 {
		b = protowire.AppendTag(b, ticketFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Signature)
	}
	for _, f := range t.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

// WithoutSignature returns a shallow copy of t with Signature cleared, used
// to build the exact bytes that were signed.
func (t *SessionTicketV1) WithoutSignature() *SessionTicketV1 {
	clone := *t
	clone.Signature = nil
	return &clone
}

// DecodeSessionTicketV1 parses protobuf wire bytes produced by Encode.
func DecodeSessionTicketV1(b []byte) (*SessionTicketV1, error) {
	t := &SessionTicketV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case ticketFieldTicketID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.TicketID = append([]byte(nil), v...)
			b = b[n:]
		case ticketFieldDeviceID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.DeviceID = append([]byte(nil), v...)
			b = b[n:]
		case ticketFieldDeviceSignPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.DeviceSignPub = append([]byte(nil), v...)
			b = b[n:]
		case ticketFieldOperatorID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.OperatorID = append([]byte(nil), v...)
			b = b[n:]
		case ticketFieldOperatorSignPub:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.OperatorSignPub = append([]byte(nil), v...)
			b = b[n:]
		case ticketFieldPermissions:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.Permissions = append(t.Permissions, Permission(v))
			b = b[n:]
		case ticketFieldIssuedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.IssuedAt = v
			b = b[n:]
		case ticketFieldExpiresAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.ExpiresAt = v
			b = b[n:]
		case ticketFieldAllowedTransports:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.AllowedTransports = append(t.AllowedTransports, string(v))
			b = b[n:]
		case ticketFieldRequireConsent:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.RequireConsent = v != 0
			b = b[n:]
		case ticketFieldSessionBinding:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.SessionBinding = append([]byte(nil), v...)
			b = b[n:]
		case ticketFieldSignature:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			t.Signature = append([]byte(nil), v...)
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			t.Unknown = append(t.Unknown, f)
			b = rest
		}
	}
	return t, nil
}
