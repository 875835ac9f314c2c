package pairing

import (
	"context"
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

type memInviteStore struct {
	byDevice map[identity.ID32]*Invite
}

func newMemInviteStore() *memInviteStore {
	return &memInviteStore{byDevice: make(map[identity.ID32]*Invite)}
}

func (s *memInviteStore) FindByDeviceID(deviceID identity.ID32) (*Invite, bool) {
	inv, ok := s.byDevice[deviceID]
	return inv, ok
}

func (s *memInviteStore) MarkConsumed(deviceID identity.ID32) error {
	inv, ok := s.byDevice[deviceID]
	if !ok {
		return nil
	}
	inv.Consumed = true
	return nil
}

type memRecordStore struct {
	records []*Record
}

func (s *memRecordStore) Put(r *Record) error {
	s.records = append(s.records, r)
	return nil
}

type approveAllApprover struct {
	perms wire.PermissionSet
}

func (a approveAllApprover) Decide(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
	return ApprovalDecision{Approved: true, GrantedPermissions: a.perms, UnattendedEnabled: true}, nil
}

type denyAllApprover struct{}

func (denyAllApprover) Decide(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
	return ApprovalDecision{Approved: false}, nil
}

func setupPairing(t *testing.T) (*identity.Keypair, *identity.Keypair, *Host, *memInviteStore, *memRecordStore) {
	t.Helper()
	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	operator, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	invites := newMemInviteStore()
	records := &memRecordStore{}
	host := &Host{
		Device:   device,
		Invites:  invites,
		Records:  records,
		Approver: approveAllApprover{perms: wire.NewPermissionSet(wire.PermissionView, wire.PermissionInput)},
	}
	return device, operator, host, invites, records
}

func TestHappyPathPairing(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	device, operator, host, invites, records := setupPairing(t)

	inv, err := NewInvite(device, 10*time.Minute, now, nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	invites.byDevice[device.ID()] = inv

	reqEnv, err := BuildPairRequest(operator, inv, true, now)
	if err != nil {
		t.Fatalf("BuildPairRequest: %v", err)
	}
	plaintext, _, err := envelope.Open(reqEnv, device.KexPriv)
	if err != nil {
		t.Fatalf("Open(request): %v", err)
	}
	req, err := wire.DecodePairRequestV1(plaintext)
	if err != nil {
		t.Fatalf("DecodePairRequestV1: %v", err)
	}

	receiptEnv, err := host.HandlePairRequest(context.Background(), req, now)
	if err != nil {
		t.Fatalf("HandlePairRequest: %v", err)
	}
	if len(records.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(records.records))
	}
	if !inv.Consumed {
		t.Fatalf("expected invite to be marked consumed")
	}

	receiptPlain, _, err := envelope.Open(receiptEnv, operator.KexPriv)
	if err != nil {
		t.Fatalf("Open(receipt): %v", err)
	}
	receipt, err := wire.DecodePairReceiptV1(receiptPlain)
	if err != nil {
		t.Fatalf("DecodePairReceiptV1: %v", err)
	}

	record, err := VerifyReceipt(receipt, operator)
	if err != nil {
		t.Fatalf("VerifyReceipt: %v", err)
	}
	if record.DeviceID != device.ID() {
		t.Fatalf("pinned device id mismatch")
	}
	if record.DeviceSignPub != device.SignPub || record.DeviceKexPub != device.KexPub {
		t.Fatalf("pinned device keys mismatch")
	}
}

func TestSecondPairRequestFailsAfterInviteConsumed(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	device, operator, host, invites, _ := setupPairing(t)

	inv, err := NewInvite(device, 10*time.Minute, now, nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	invites.byDevice[device.ID()] = inv

	reqEnv, err := BuildPairRequest(operator, inv, false, now)
	if err != nil {
		t.Fatalf("BuildPairRequest: %v", err)
	}
	plaintext, _, _ := envelope.Open(reqEnv, device.KexPriv)
	req, _ := wire.DecodePairRequestV1(plaintext)

	if _, err := host.HandlePairRequest(context.Background(), req, now); err != nil {
		t.Fatalf("first HandlePairRequest: %v", err)
	}

	if _, err := host.HandlePairRequest(context.Background(), req, now); err != coreerr.ErrNoActiveInvite {
		t.Fatalf("expected ErrNoActiveInvite on reuse, got %v", err)
	}
}

func TestExpiredInviteIsDenied(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	device, operator, host, invites, _ := setupPairing(t)

	inv, err := NewInvite(device, time.Minute, now, nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	invites.byDevice[device.ID()] = inv

	reqEnv, err := BuildPairRequest(operator, inv, false, now)
	if err != nil {
		t.Fatalf("BuildPairRequest: %v", err)
	}
	plaintext, _, _ := envelope.Open(reqEnv, device.KexPriv)
	req, _ := wire.DecodePairRequestV1(plaintext)

	later := now.Add(2 * time.Minute)
	if _, err := host.HandlePairRequest(context.Background(), req, later); err != coreerr.ErrInviteExpired {
		t.Fatalf("expected ErrInviteExpired, got %v", err)
	}
}

func TestBadPairProofIsDenied(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	device, operator, host, invites, _ := setupPairing(t)

	inv, err := NewInvite(device, 10*time.Minute, now, nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	invites.byDevice[device.ID()] = inv

	reqEnv, err := BuildPairRequest(operator, inv, false, now)
	if err != nil {
		t.Fatalf("BuildPairRequest: %v", err)
	}
	plaintext, _, _ := envelope.Open(reqEnv, device.KexPriv)
	req, _ := wire.DecodePairRequestV1(plaintext)
	req.PairProof[0] ^= 0x01

	if _, err := host.HandlePairRequest(context.Background(), req, now); err != coreerr.ErrPairProofInvalid {
		t.Fatalf("expected ErrPairProofInvalid, got %v", err)
	}
}

func TestUserDenialSurfacesDenied(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	device, operator, host, invites, _ := setupPairing(t)
	host.Approver = denyAllApprover{}

	inv, err := NewInvite(device, 10*time.Minute, now, nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	invites.byDevice[device.ID()] = inv

	reqEnv, err := BuildPairRequest(operator, inv, false, now)
	if err != nil {
		t.Fatalf("BuildPairRequest: %v", err)
	}
	plaintext, _, _ := envelope.Open(reqEnv, device.KexPriv)
	req, _ := wire.DecodePairRequestV1(plaintext)

	if _, err := host.HandlePairRequest(context.Background(), req, now); err != coreerr.ErrUserDenied {
		t.Fatalf("expected ErrUserDenied, got %v", err)
	}
}

func TestSASConsistentBothSides(t *testing.T) {
	operatorID := []byte{0x01}
	operatorSignPub := []byte{0x02}
	operatorKexPub := []byte{0x03}
	deviceID := []byte{0x04}
	deviceSignPub := []byte{0x05}
	var createdAt uint64 = 1000
	var expiresAt uint64 = 2000

	fields1 := make([]byte, 0)
	fields2 := make([]byte, 0)
	fields1 = append(fields1, operatorID...)
	fields2 = append(fields2, operatorID...)

	sasA := ComputeSAS(fields1, operatorSignPub, deviceSignPub, createdAt, expiresAt)
	sasB := ComputeSAS(fields2, operatorSignPub, deviceSignPub, createdAt, expiresAt)
	if sasA != sasB {
		t.Fatalf("expected deterministic SAS, got %s vs %s", sasA, sasB)
	}
	if len(sasA) != 6 {
		t.Fatalf("expected 6-digit SAS, got %q", sasA)
	}
	for _, r := range sasA {
		if r < '0' || r > '9' {
			t.Fatalf("expected all-digit SAS, got %q", sasA)
		}
	}
	_ = deviceID
}
