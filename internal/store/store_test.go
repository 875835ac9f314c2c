package store

import (
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/pairing"
)

func TestInviteStorePutAndFind(t *testing.T) {
	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	s := NewInviteStore()
	inv, err := pairing.NewInvite(device, time.Hour, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	s.Put(device.ID(), inv)

	got, ok := s.FindByDeviceID(device.ID())
	if !ok {
		t.Fatalf("expected invite to be found")
	}
	if got != inv {
		t.Fatalf("expected the same invite instance back")
	}
}

func TestInviteStoreMarkConsumed(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	s := NewInviteStore()
	inv, err := pairing.NewInvite(device, time.Hour, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}
	s.Put(device.ID(), inv)

	if err := s.MarkConsumed(device.ID()); err != nil {
		t.Fatalf("MarkConsumed: %v", err)
	}
	got, _ := s.FindByDeviceID(device.ID())
	if !got.Consumed {
		t.Fatalf("expected invite to be marked consumed")
	}
}

func TestPairingStorePutGetRevoke(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()
	s := NewPairingStore()
	record := &pairing.Record{
		PairingID:  [16]byte{1, 2, 3},
		DeviceID:   device.ID(),
		OperatorID: operator.ID(),
	}
	if err := s.Put(record); err != nil {
		t.Fatalf("Put: %v", err)
	}

	key := pairing.Key{DeviceID: device.ID(), OperatorID: operator.ID()}
	got, ok := s.Get(key)
	if !ok || got != record {
		t.Fatalf("expected Get to return the stored record")
	}

	byID, ok := s.GetByPairingID(record.PairingID)
	if !ok || byID != record {
		t.Fatalf("expected GetByPairingID to return the stored record")
	}

	if err := s.Revoke(key); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, ok := s.Get(key); ok {
		t.Fatalf("expected record to be gone after Revoke")
	}
	if _, ok := s.GetByPairingID(record.PairingID); ok {
		t.Fatalf("expected pairing-id index to be cleared after Revoke")
	}
}

func TestPairingStoreRevokeUnknownKeyFails(t *testing.T) {
	s := NewPairingStore()
	if err := s.Revoke(pairing.Key{}); err == nil {
		t.Fatalf("expected revoke of unknown key to fail")
	}
}
