package ticket

import (
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	operator, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)
	for i := range sessionID {
		sessionID[i] = 0xA0
	}
	nonce := make([]byte, 16)
	for i := range nonce {
		nonce[i] = 0xB0
	}

	tkt, err := Issue(device, operator.ID(), operator.SignPub, sessionID, nonce, []wire.Permission{wire.PermissionView}, []string{"quic"}, false, DefaultTTL, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	deviceID := device.ID()
	if err := Verify(tkt, sessionID, operator.ID().Bytes(), deviceID.Bytes(), nonce, now); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsExpiredTicket(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)
	nonce := make([]byte, 16)

	tkt, err := Issue(device, operator.ID(), operator.SignPub, sessionID, nonce, nil, nil, false, 300*time.Second, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	deviceID := device.ID()
	later := now.Add(301 * time.Second)
	if err := Verify(tkt, sessionID, operator.ID().Bytes(), deviceID.Bytes(), nonce, later); err != coreerr.ErrTicketExpired {
		t.Fatalf("expected ErrTicketExpired, got %v", err)
	}
}

func TestVerifyRejectsBindingMismatch(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)
	nonce := make([]byte, 16)

	tkt, err := Issue(device, operator.ID(), operator.SignPub, sessionID, nonce, nil, nil, false, DefaultTTL, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	deviceID := device.ID()
	wrongNonce := make([]byte, 16)
	wrongNonce[0] = 0x01
	if err := Verify(tkt, sessionID, operator.ID().Bytes(), deviceID.Bytes(), wrongNonce, now); err == nil {
		t.Fatalf("expected binding mismatch to be rejected")
	}
}

func TestIssueRejectsTTLOverCap(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)
	nonce := make([]byte, 16)

	if _, err := Issue(device, operator.ID(), operator.SignPub, sessionID, nonce, nil, nil, false, MaxTTL+time.Second, now); err != ErrTTLTooLong {
		t.Fatalf("expected ErrTTLTooLong, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()
	now := time.Unix(1_760_000_000, 0)
	sessionID := make([]byte, 16)
	nonce := make([]byte, 16)

	tkt, err := Issue(device, operator.ID(), operator.SignPub, sessionID, nonce, nil, nil, false, DefaultTTL, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tkt.Signature[0] ^= 0x01

	deviceID := device.ID()
	if err := Verify(tkt, sessionID, operator.ID().Bytes(), deviceID.Bytes(), nonce, now); err == nil {
		t.Fatalf("expected tampered signature to be rejected")
	}
}
