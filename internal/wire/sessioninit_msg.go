package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for SessionInitRequestV1. Frozen; never renumber.
const (
	sirFieldSessionID           Number = 1
	sirFieldDeviceID            Number = 2
	sirFieldOperatorID          Number = 3
	sirFieldTicket              Number = 4
	sirFieldTransportPreference Number = 5
	sirFieldCreatedAt           Number = 6
	sirFieldTicketBindingNonce  Number = 7
)

// SessionInitRequestV1 is the plaintext payload of an envelope with
// msg_type="session_init_request_v1" (spec.md §4.5).
type SessionInitRequestV1 struct {
	SessionID           []byte // 16 bytes
	DeviceID            []byte
	OperatorID          []byte
	Ticket              *SessionTicketV1 // nil if none carried
	TransportPreference string
	CreatedAt           uint64
	TicketBindingNonce  []byte // 16 bytes

	Unknown []RawField
}

func (m *SessionInitRequestV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, sirFieldSessionID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.SessionID)
	b = protowire.AppendTag(b, sirFieldDeviceID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.DeviceID)
	b = protowire.AppendTag(b, sirFieldOperatorID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.OperatorID)
	if m.Ticket != nil {
		b = protowire.AppendTag(b, sirFieldTicket, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Ticket.Encode())
	}
	b = protowire.AppendTag(b, sirFieldTransportPreference, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(m.TransportPreference))
	b = protowire.AppendTag(b, sirFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, m.CreatedAt)
	b = protowire.AppendTag(b, sirFieldTicketBindingNonce, protowire.BytesType)
	b = protowire.AppendBytes(b, m.TicketBindingNonce)
	for _, f := range m.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

func DecodeSessionInitRequestV1(b []byte) (*SessionInitRequestV1, error) {
	m := &SessionInitRequestV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case sirFieldSessionID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.SessionID = append([]byte(nil), v...)
			b = b[n:]
		case sirFieldDeviceID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.DeviceID = append([]byte(nil), v...)
			b = b[n:]
		case sirFieldOperatorID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.OperatorID = append([]byte(nil), v...)
			b = b[n:]
		case sirFieldTicket:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			ticket, err := DecodeSessionTicketV1(v)
			if err != nil {
				return nil, err
			}
			m.Ticket = ticket
			b = b[n:]
		case sirFieldTransportPreference:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.TransportPreference = string(v)
			b = b[n:]
		case sirFieldCreatedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.CreatedAt = v
			b = b[n:]
		case sirFieldTicketBindingNonce:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.TicketBindingNonce = append([]byte(nil), v...)
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

// Field numbers for SessionInitResponseV1. Frozen; never renumber.
const (
	sirespFieldRequiresConsent    Number = 1
	sirespFieldIssuedTicket       Number = 2
	sirespFieldQUICEndpoint       Number = 3
	sirespFieldQUICALPN           Number = 4
	sirespFieldQUICServerCertDER  Number = 5
	sirespFieldNegotiationCommit  Number = 6
	sirespFieldErrorCode          Number = 7
	sirespFieldErrorMessage       Number = 8
)

// SessionInitResponseV1 is the plaintext payload of an envelope with
// msg_type="session_init_response_v1" (spec.md §4.5). When RequiresConsent
// is true, no negotiation parameters or ticket are carried, and the
// operator must retry after the consent side-channel resolves.
type SessionInitResponseV1 struct {
	RequiresConsent      bool
	IssuedTicket         *SessionTicketV1 // nil when RequiresConsent or on error
	QUICEndpoint         string
	QUICALPN             string
	QUICServerCertDER    []byte
	NegotiationCommit    []byte // SHA256 of this message with the field cleared
	ErrorCode            string // empty on success
	ErrorMessage         string

	Unknown []RawField
}

// WithoutCommit returns a shallow copy of m with NegotiationCommit cleared,
// used to build the bytes the commitment hash covers (spec.md §4.5 step 6).
func (m *SessionInitResponseV1) WithoutCommit() *SessionInitResponseV1 {
	clone := *m
	clone.NegotiationCommit = nil
	return &clone
}

func (m *SessionInitResponseV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, sirespFieldRequiresConsent, protowire.VarintType)
	if m.RequiresConsent {
		b = protowire.AppendVarint(b, 1)
	} else {
		b = protowire.AppendVarint(b, 0)
	}
	if m.IssuedTicket != nil {
		b = protowire.AppendTag(b, sirespFieldIssuedTicket, protowire.BytesType)
		b = protowire.AppendBytes(b, m.IssuedTicket.Encode())
	}
	if m.QUICEndpoint != "" {
		b = protowire.AppendTag(b, sirespFieldQUICEndpoint, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(m.QUICEndpoint))
	}
	if m.QUICALPN != "" {
		b = protowire.AppendTag(b, sirespFieldQUICALPN, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(m.QUICALPN))
	}
	if len(m.QUICServerCertDER) > 0 {
		b = protowire.AppendTag(b, sirespFieldQUICServerCertDER, protowire.BytesType)
		b = protowire.AppendBytes(b, m.QUICServerCertDER)
	}
	if len(m.NegotiationCommit) > 0 {
		b = protowire.AppendTag(b, sirespFieldNegotiationCommit, protowire.BytesType)
		b = protowire.AppendBytes(b, m.NegotiationCommit)
	}
	if m.ErrorCode != "" {
		b = protowire.AppendTag(b, sirespFieldErrorCode, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(m.ErrorCode))
	}
	if m.ErrorMessage != "" {
		b = protowire.AppendTag(b, sirespFieldErrorMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(m.ErrorMessage))
	}
	for _, f := range m.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

func DecodeSessionInitResponseV1(b []byte) (*SessionInitResponseV1, error) {
	m := &SessionInitResponseV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case sirespFieldRequiresConsent:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RequiresConsent = v != 0
			b = b[n:]
		case sirespFieldIssuedTicket:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			ticket, err := DecodeSessionTicketV1(v)
			if err != nil {
				return nil, err
			}
			m.IssuedTicket = ticket
			b = b[n:]
		case sirespFieldQUICEndpoint:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.QUICEndpoint = string(v)
			b = b[n:]
		case sirespFieldQUICALPN:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.QUICALPN = string(v)
			b = b[n:]
		case sirespFieldQUICServerCertDER:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.QUICServerCertDER = append([]byte(nil), v...)
			b = b[n:]
		case sirespFieldNegotiationCommit:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.NegotiationCommit = append([]byte(nil), v...)
			b = b[n:]
		case sirespFieldErrorCode:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.ErrorCode = string(v)
			b = b[n:]
		case sirespFieldErrorMessage:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.ErrorMessage = string(v)
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
