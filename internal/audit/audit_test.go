package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/identity"
)

func TestRecordProducesVerifiableSignature(t *testing.T) {
	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	operator, _ := identity.GenerateKeypair()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, device)
	entry, err := log.Record(OutcomeSessionGranted, device.ID(), operator.ID(), "quic session opened", time.Unix(1_760_000_000, 0))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := Verify(entry, device.SignPub); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedEntry(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	operator, _ := identity.GenerateKeypair()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, device)
	entry, err := log.Record(OutcomePairDenied, device.ID(), operator.ID(), "bad pair proof", time.Unix(1_760_000_000, 0))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry.Detail = "bad pair proof (tampered)"
	if err := Verify(entry, device.SignPub); err == nil {
		t.Fatalf("expected tampered entry to fail verification")
	}
}

func TestSequenceNumbersIncreaseMonotonically(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	var buf bytes.Buffer
	log := NewWithWriter(&buf, device)

	first, err := log.Record(OutcomeTicketIssued, device.ID(), identity.ID32{}, "", time.Unix(1_760_000_000, 0))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	second, err := log.Record(OutcomeTicketIssued, device.ID(), identity.ID32{}, "", time.Unix(1_760_000_001, 0))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if second.Sequence != first.Sequence+1 {
		t.Fatalf("expected monotonic sequence numbers, got %d then %d", first.Sequence, second.Sequence)
	}
}

func TestReadEntriesRoundTrip(t *testing.T) {
	device, _ := identity.GenerateKeypair()
	var buf bytes.Buffer
	log := NewWithWriter(&buf, device)

	for i := 0; i < 3; i++ {
		if _, err := log.Record(OutcomeReplayRejected, device.ID(), identity.ID32{}, "dup counter", time.Unix(1_760_000_000, 0)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := ReadEntries(&buf)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if err := Verify(e, device.SignPub); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
}
