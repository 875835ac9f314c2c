// Package sessioninit implements the session-init state machine (spec.md
// §4.5): authenticates an operator against an existing pairing, applies
// consent policy, issues a ticket, and returns QUIC transport parameters.
package sessioninit

import (
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/ticket"
	"github.com/zrc-project/zrc/internal/wire"
)

// RecordLookup is the subset of the pairing store the host handler needs.
type RecordLookup interface {
	Get(key pairing.Key) (*pairing.Record, bool)
}

// QUICParams describes the transport parameters a host hands back to an
// approved session (spec.md §4.5 step 6).
type QUICParams struct {
	Endpoint      string
	ALPN          string
	ServerCertDER []byte
}

// Host runs the device-side half of the session-init state machine.
type Host struct {
	Device  *identity.Keypair
	Records RecordLookup
	TTL     time.Duration // ticket.Issue rejects a value above ticket.MaxTTL
}

// HandleSessionInitRequest implements spec.md §4.5's algorithm in full.
// buildParams is invoked only when a ticket will actually be issued (i.e.
// consent is not required), since assembling QUIC parameters can be
// comparatively expensive (binding a fresh listener, generating a cert).
func (h *Host) HandleSessionInitRequest(req *wire.SessionInitRequestV1, now time.Time, buildParams func() (QUICParams, error)) (*envelope.Envelope, error) {
	var deviceID, operatorID identity.ID32
	if len(req.DeviceID) != 32 || len(req.OperatorID) != 32 {
		return nil, coreerr.BadRequest("device_id/operator_id must be 32 bytes")
	}
	copy(deviceID[:], req.DeviceID)
	copy(operatorID[:], req.OperatorID)

	record, ok := h.Records.Get(pairing.Key{DeviceID: deviceID, OperatorID: operatorID})
	if !ok {
		return nil, coreerr.ErrNotPaired
	}

	requiresConsent := record.RequireConsentEachTime || !record.UnattendedEnabled

	if len(req.TicketBindingNonce) != 16 {
		return nil, coreerr.BadRequest("ticket_binding_nonce must be 16 bytes")
	}

	if req.Ticket != nil {
		if err := ticket.Verify(req.Ticket, req.SessionID, req.OperatorID, req.DeviceID, req.TicketBindingNonce, now); err != nil {
			return nil, err
		}
		if !req.Ticket.RequireConsent {
			requiresConsent = false
		}
	}

	resp := &wire.SessionInitResponseV1{RequiresConsent: requiresConsent}

	if !requiresConsent {
		params, err := buildParams()
		if err != nil {
			return nil, fmt.Errorf("sessioninit: build transport params: %w", err)
		}
		issued, err := ticket.Issue(h.Device, operatorID, record.OperatorSignPub, req.SessionID, req.TicketBindingNonce, record.GrantedPermissions.Slice(), []string{"quic"}, false, h.TTL, now)
		if err != nil {
			return nil, fmt.Errorf("sessioninit: issue ticket: %w", err)
		}
		resp.IssuedTicket = issued
		resp.QUICEndpoint = params.Endpoint
		resp.QUICALPN = params.ALPN
		resp.QUICServerCertDER = params.ServerCertDER

		commitBytes := resp.WithoutCommit().Encode()
		commit := cryptoutil.SHA256Sum(commitBytes)
		resp.NegotiationCommit = commit[:]
	}

	env, err := envelope.Seal(h.Device, operatorID, record.OperatorKexPub, "session_init_response_v1", resp.Encode(), now)
	if err != nil {
		return nil, fmt.Errorf("sessioninit: seal response: %w", err)
	}
	return env, nil
}

// BuildSessionInitRequest constructs and seals a SessionInitRequestV1
// envelope on behalf of an operator, generating a fresh 16-byte
// ticket_binding_nonce (spec.md §4.5).
func BuildSessionInitRequest(operator *identity.Keypair, record *pairing.Record, sessionID []byte, existingTicket *wire.SessionTicketV1, transportPreference string, now time.Time) (*envelope.Envelope, []byte, error) {
	nonce, err := cryptoutil.Random16()
	if err != nil {
		return nil, nil, fmt.Errorf("sessioninit: generate binding nonce: %w", err)
	}
	operatorID := operator.ID()
	req := &wire.SessionInitRequestV1{
		SessionID:           sessionID,
		DeviceID:            record.DeviceID[:],
		OperatorID:          operatorID[:],
		Ticket:              existingTicket,
		TransportPreference: transportPreference,
		CreatedAt:           uint64(now.Unix()),
		TicketBindingNonce:  nonce[:],
	}
	env, err := envelope.Seal(operator, record.DeviceID, record.DeviceKexPub, "session_init_request_v1", req.Encode(), now)
	if err != nil {
		return nil, nil, fmt.Errorf("sessioninit: seal request: %w", err)
	}
	return env, nonce[:], nil
}

// VerifyResponse implements the controller's half of spec.md §4.5: if a
// ticket is present, re-verify it, then reject if the device sign-pub
// inside the ticket differs from the pairing-pinned device sign-pub
// (spec.md P10, the MITM/downgrade signal).
func VerifyResponse(resp *wire.SessionInitResponseV1, record *pairing.Record, sessionID, ticketBindingNonce []byte, now time.Time) error {
	if resp.RequiresConsent {
		return nil
	}
	if resp.IssuedTicket == nil {
		return coreerr.BadRequest("response carries no ticket but does not require consent")
	}
	if err := ticket.Verify(resp.IssuedTicket, sessionID, record.OperatorID.Bytes(), record.DeviceID.Bytes(), ticketBindingNonce, now); err != nil {
		return err
	}
	if len(resp.IssuedTicket.DeviceSignPub) != cryptoutil.SignPublicKeySize {
		return coreerr.BadRequest("ticket device_sign_pub has wrong length")
	}
	var ticketDeviceSignPub [cryptoutil.SignPublicKeySize]byte
	copy(ticketDeviceSignPub[:], resp.IssuedTicket.DeviceSignPub)
	if ticketDeviceSignPub != record.DeviceSignPub {
		return coreerr.ErrDeviceSignPubMismatch
	}
	return nil
}
