package sessioninit

import (
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/wire"
)

type memRecords struct {
	records map[pairing.Key]*pairing.Record
}

func (m *memRecords) Get(key pairing.Key) (*pairing.Record, bool) {
	r, ok := m.records[key]
	return r, ok
}

func setup(t *testing.T, unattended bool) (*identity.Keypair, *identity.Keypair, *pairing.Record, *Host) {
	t.Helper()
	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	operator, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	record := &pairing.Record{
		DeviceID:           device.ID(),
		DeviceSignPub:      device.SignPub,
		DeviceKexPub:       device.KexPub,
		OperatorID:         operator.ID(),
		OperatorSignPub:    operator.SignPub,
		OperatorKexPub:     operator.KexPub,
		GrantedPermissions: wire.NewPermissionSet(wire.PermissionView),
		UnattendedEnabled:  unattended,
	}
	records := &memRecords{records: map[pairing.Key]*pairing.Record{record.Key(): record}}
	host := &Host{Device: device, Records: records, TTL: 5 * time.Minute}
	return device, operator, record, host
}

func stubParams() (QUICParams, error) {
	return QUICParams{Endpoint: "127.0.0.1:4433", ALPN: "zrc/1", ServerCertDER: []byte("cert-der")}, nil
}

func TestUnattendedSessionInitIssuesTicket(t *testing.T) {
	device, operator, record, host := setup(t, true)
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)
	for i := range sessionID {
		sessionID[i] = 0xA0
	}

	reqEnv, nonce, err := BuildSessionInitRequest(operator, record, sessionID, nil, "quic", now)
	if err != nil {
		t.Fatalf("BuildSessionInitRequest: %v", err)
	}
	plaintext, _, err := envelope.Open(reqEnv, device.KexPriv)
	if err != nil {
		t.Fatalf("Open(request): %v", err)
	}
	req, err := wire.DecodeSessionInitRequestV1(plaintext)
	if err != nil {
		t.Fatalf("DecodeSessionInitRequestV1: %v", err)
	}

	respEnv, err := host.HandleSessionInitRequest(req, now, stubParams)
	if err != nil {
		t.Fatalf("HandleSessionInitRequest: %v", err)
	}

	respPlain, _, err := envelope.Open(respEnv, operator.KexPriv)
	if err != nil {
		t.Fatalf("Open(response): %v", err)
	}
	resp, err := wire.DecodeSessionInitResponseV1(respPlain)
	if err != nil {
		t.Fatalf("DecodeSessionInitResponseV1: %v", err)
	}
	if resp.RequiresConsent {
		t.Fatalf("expected unattended pairing to skip consent")
	}
	if resp.IssuedTicket == nil {
		t.Fatalf("expected a ticket to be issued")
	}

	if err := VerifyResponse(resp, record, sessionID, nonce, now); err != nil {
		t.Fatalf("VerifyResponse: %v", err)
	}
}

func TestAttendedSessionInitRequiresConsent(t *testing.T) {
	device, operator, record, host := setup(t, false)
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)

	reqEnv, _, err := BuildSessionInitRequest(operator, record, sessionID, nil, "quic", now)
	if err != nil {
		t.Fatalf("BuildSessionInitRequest: %v", err)
	}
	plaintext, _, _ := envelope.Open(reqEnv, device.KexPriv)
	req, _ := wire.DecodeSessionInitRequestV1(plaintext)

	respEnv, err := host.HandleSessionInitRequest(req, now, stubParams)
	if err != nil {
		t.Fatalf("HandleSessionInitRequest: %v", err)
	}
	respPlain, _, _ := envelope.Open(respEnv, operator.KexPriv)
	resp, _ := wire.DecodeSessionInitResponseV1(respPlain)
	if !resp.RequiresConsent {
		t.Fatalf("expected consent to be required")
	}
	if resp.IssuedTicket != nil {
		t.Fatalf("expected no ticket when consent is required")
	}
}

func TestVerifyResponseRejectsDeviceSignPubSubstitution(t *testing.T) {
	device, operator, record, host := setup(t, true)
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)

	reqEnv, nonce, err := BuildSessionInitRequest(operator, record, sessionID, nil, "quic", now)
	if err != nil {
		t.Fatalf("BuildSessionInitRequest: %v", err)
	}
	plaintext, _, _ := envelope.Open(reqEnv, device.KexPriv)
	req, _ := wire.DecodeSessionInitRequestV1(plaintext)

	respEnv, err := host.HandleSessionInitRequest(req, now, stubParams)
	if err != nil {
		t.Fatalf("HandleSessionInitRequest: %v", err)
	}
	respPlain, _, _ := envelope.Open(respEnv, operator.KexPriv)
	resp, _ := wire.DecodeSessionInitResponseV1(respPlain)

	attacker, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	resp.IssuedTicket.DeviceSignPub = attacker.SignPub[:]

	if err := VerifyResponse(resp, record, sessionID, nonce, now); err != coreerr.ErrDeviceSignPubMismatch {
		t.Fatalf("expected ErrDeviceSignPubMismatch, got %v", err)
	}
}

func TestHandleSessionInitRequestRejectsUnknownPairing(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()
	records := &memRecords{records: map[pairing.Key]*pairing.Record{}}
	host := &Host{Device: device, Records: records, TTL: 5 * time.Minute}

	req := &wire.SessionInitRequestV1{
		SessionID:          make([]byte, 16),
		DeviceID:           device.ID().Bytes(),
		OperatorID:         operator.ID().Bytes(),
		TicketBindingNonce: make([]byte, 16),
	}
	if _, err := host.HandleSessionInitRequest(req, time.Unix(1_760_000_000, 0), stubParams); err != coreerr.ErrNotPaired {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
}
