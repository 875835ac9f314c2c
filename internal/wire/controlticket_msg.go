package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for ControlTicketV1. Frozen; never renumber (spec.md §6).
const (
	controlTicketFieldSessionID    protowire.Number = 1
	controlTicketFieldDeviceID     protowire.Number = 2
	controlTicketFieldOperatorID   protowire.Number = 3
	controlTicketFieldBindingNonce protowire.Number = 4
	controlTicketFieldTicket       protowire.Number = 5
)

// ControlTicketV1 is the plaintext-inside-TLS frame a controller sends as
// the first message on a Control stream, before session AEAD is keyed
// (spec.md §4.7). It is safe to send in the clear because the QUIC
// transport's TLS is already pinned to the operator-sealed cert DER, and
// because the ticket is useless without the paired device's private key.
type ControlTicketV1 struct {
	SessionID          []byte
	DeviceID           []byte
	OperatorID         []byte
	TicketBindingNonce []byte
	Ticket             *SessionTicketV1

	Unknown []RawField
}

// Encode serializes the control ticket frame.
func (c *ControlTicketV1) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, controlTicketFieldSessionID, protowire.BytesType)
	b = protowire.AppendBytes(b, c.SessionID)
	b = protowire.AppendTag(b, controlTicketFieldDeviceID, protowire.BytesType)
	b = protowire.AppendBytes(b, c.DeviceID)
	b = protowire.AppendTag(b, controlTicketFieldOperatorID, protowire.BytesType)
	b = protowire.AppendBytes(b, c.OperatorID)
	b = protowire.AppendTag(b, controlTicketFieldBindingNonce, protowire.BytesType)
	b = protowire.AppendBytes(b, c.TicketBindingNonce)
	if c.Ticket != nil {
		b = protowire.AppendTag(b, controlTicketFieldTicket, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Ticket.Encode())
	}
	for _, f := range c.Unknown {
		b = appendTagged(b, f)
	}
	return b
}

// DecodeControlTicketV1 parses a control ticket frame, preserving any
// field numbers it does not recognize.
func DecodeControlTicketV1(b []byte) (*ControlTicketV1, error) {
	c := &ControlTicketV1{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case controlTicketFieldSessionID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.SessionID = append([]byte(nil), v...)
			b = b[n:]
		case controlTicketFieldDeviceID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.DeviceID = append([]byte(nil), v...)
			b = b[n:]
		case controlTicketFieldOperatorID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.OperatorID = append([]byte(nil), v...)
			b = b[n:]
		case controlTicketFieldBindingNonce:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c.TicketBindingNonce = append([]byte(nil), v...)
			b = b[n:]
		case controlTicketFieldTicket:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			ticket, err := DecodeSessionTicketV1(v)
			if err != nil {
				return nil, err
			}
			c.Ticket = ticket
			b = b[n:]
		default:
			f, rest, err := consumeUnknown(num, typ, b)
			if err != nil {
				return nil, err
			}
			c.Unknown = append(c.Unknown, f)
			b = rest
		}
	}
	return c, nil
}
