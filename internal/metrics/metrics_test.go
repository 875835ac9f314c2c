package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.PairingsActive == nil {
		t.Error("PairingsActive metric is nil")
	}
	if m.SessionsActive == nil {
		t.Error("SessionsActive metric is nil")
	}
	if m.BytesSent == nil {
		t.Error("BytesSent metric is nil")
	}
}

func TestRecordInviteLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordInviteIssued()
	m.RecordInviteIssued()
	m.RecordInviteConsumed()
	m.RecordInviteExpired()
	m.RecordInviteRateLimited()

	if got := testutil.ToFloat64(m.InvitesIssued); got != 2 {
		t.Errorf("InvitesIssued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.InvitesConsumed); got != 1 {
		t.Errorf("InvitesConsumed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PairingsActive); got != 1 {
		t.Errorf("PairingsActive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InvitesExpired); got != 1 {
		t.Errorf("InvitesExpired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InvitesRateLimited); got != 1 {
		t.Errorf("InvitesRateLimited = %v, want 1", got)
	}
}

func TestRecordPairingRevoked(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordInviteConsumed()
	m.RecordInviteConsumed()
	m.RecordPairingRevoked()

	if got := testutil.ToFloat64(m.PairingsActive); got != 1 {
		t.Errorf("PairingsActive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PairingRevocations); got != 1 {
		t.Errorf("PairingRevocations = %v, want 1", got)
	}
}

func TestRecordPairingApproval(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordPairingApproval("approved")
	m.RecordPairingApproval("approved")
	m.RecordPairingApproval("denied")

	if got := testutil.ToFloat64(m.PairingApprovals.WithLabelValues("approved")); got != 2 {
		t.Errorf("PairingApprovals[approved] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PairingApprovals.WithLabelValues("denied")); got != 1 {
		t.Errorf("PairingApprovals[denied] = %v, want 1", got)
	}
}

func TestRecordSessionStartEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordSessionStart(0.1)
	m.RecordSessionStart(0.2)
	m.RecordSessionEnd()

	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("SessionsActive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsTotal); got != 2 {
		t.Errorf("SessionsTotal = %v, want 2", got)
	}
}

func TestRecordSessionInitError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordSessionInitError("not_paired")
	m.RecordSessionInitError("not_paired")
	m.RecordSessionInitError("consent_denied")

	if got := testutil.ToFloat64(m.SessionInitErrors.WithLabelValues("not_paired")); got != 2 {
		t.Errorf("SessionInitErrors[not_paired] = %v, want 2", got)
	}
}

func TestRecordBytesTransfer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordBytesSent("frames", 1000)
	m.RecordBytesSent("frames", 500)
	m.RecordBytesSent("control", 100)
	m.RecordBytesReceived("frames", 2000)

	if got := testutil.ToFloat64(m.BytesSent.WithLabelValues("frames")); got != 1500 {
		t.Errorf("BytesSent[frames] = %v, want 1500", got)
	}
	if got := testutil.ToFloat64(m.BytesSent.WithLabelValues("control")); got != 100 {
		t.Errorf("BytesSent[control] = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.BytesReceived.WithLabelValues("frames")); got != 2000 {
		t.Errorf("BytesReceived[frames] = %v, want 2000", got)
	}
}

func TestRecordChannelStreams(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordChannelStreamOpen()
	m.RecordChannelStreamOpen()
	m.RecordChannelStreamClose()

	if got := testutil.ToFloat64(m.ChannelStreamsOpen); got != 1 {
		t.Errorf("ChannelStreamsOpen = %v, want 1", got)
	}
}

func TestRecordControlMessages(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordControlMessageSent("input_event")
	m.RecordControlMessageSent("input_event")
	m.RecordControlMessageDenied("clipboard_set")

	if got := testutil.ToFloat64(m.ControlMessagesSent.WithLabelValues("input_event")); got != 2 {
		t.Errorf("ControlMessagesSent[input_event] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ControlMessagesDenied.WithLabelValues("clipboard_set")); got != 1 {
		t.Errorf("ControlMessagesDenied[clipboard_set] = %v, want 1", got)
	}
}

func TestRecordReplayAndEnvelopeErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordReplayRejection()
	m.RecordReplayRejection()
	m.RecordEnvelopeOpenError()

	if got := testutil.ToFloat64(m.ReplayRejections); got != 2 {
		t.Errorf("ReplayRejections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EnvelopeOpenErrors); got != 1 {
		t.Errorf("EnvelopeOpenErrors = %v, want 1", got)
	}
}

func TestRecordAuditEntry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordAuditEntry()
	m.RecordAuditEntry()
	m.RecordAuditEntry()

	if got := testutil.ToFloat64(m.AuditEntriesWritten); got != 3 {
		t.Errorf("AuditEntriesWritten = %v, want 3", got)
	}
}

func TestDefaultMetrics(t *testing.T) {
	m1 := Default()
	m2 := Default()

	if m1 != m2 {
		t.Error("Default() should return same instance")
	}
	if m1 == nil {
		t.Error("Default() returned nil")
	}
}
