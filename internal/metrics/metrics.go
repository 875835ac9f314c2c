// Package metrics provides Prometheus metrics for zrcd and zrcctl.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "zrc"

// Metrics contains all Prometheus metrics for a zrcd device or zrcctl
// operator process.
type Metrics struct {
	// Pairing metrics
	PairingsActive     prometheus.Gauge
	InvitesIssued      prometheus.Counter
	InvitesConsumed    prometheus.Counter
	InvitesExpired     prometheus.Counter
	InvitesRateLimited prometheus.Counter
	PairingApprovals   *prometheus.CounterVec
	PairingRevocations prometheus.Counter

	// Session metrics
	SessionsActive      prometheus.Gauge
	SessionsTotal       prometheus.Counter
	SessionInitLatency  prometheus.Histogram
	SessionInitErrors   *prometheus.CounterVec
	TicketsIssued       prometheus.Counter
	SessionConsentWaits prometheus.Histogram

	// Channel/data-plane metrics
	ChannelStreamsOpen    prometheus.Gauge
	BytesSent             *prometheus.CounterVec
	BytesReceived         *prometheus.CounterVec
	FramesEncoded         prometheus.Counter
	ControlMessagesSent   *prometheus.CounterVec
	ControlMessagesDenied *prometheus.CounterVec

	// Replay/crypto metrics
	ReplayRejections   prometheus.Counter
	EnvelopeOpenErrors prometheus.Counter

	// Audit metrics
	AuditEntriesWritten prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom
// registry, for tests and for processes that run more than one role.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PairingsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairings_active",
			Help:      "Number of currently active device-operator pairings",
		}),
		InvitesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_issued_total",
			Help:      "Total pairing invites issued",
		}),
		InvitesConsumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_consumed_total",
			Help:      "Total pairing invites successfully consumed",
		}),
		InvitesExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_expired_total",
			Help:      "Total pairing invites that expired unused",
		}),
		InvitesRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_rate_limited_total",
			Help:      "Total invite attempts rejected by the rate limiter",
		}),
		PairingApprovals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_approvals_total",
			Help:      "Total pairing approval decisions by outcome",
		}, []string{"outcome"}),
		PairingRevocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_revocations_total",
			Help:      "Total pairings revoked",
		}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active remote-desktop sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total sessions established",
		}),
		SessionInitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_init_latency_seconds",
			Help:      "Histogram of session-init round-trip latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		SessionInitErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_init_errors_total",
			Help:      "Total session-init failures by reason",
		}, []string{"reason"}),
		TicketsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_issued_total",
			Help:      "Total session tickets issued",
		}),
		SessionConsentWaits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_consent_wait_seconds",
			Help:      "Histogram of time spent waiting on interactive consent",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		ChannelStreamsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_streams_open",
			Help:      "Number of open QUIC channel streams across all sessions",
		}),
		BytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent by channel",
		}, []string{"channel"}),
		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes received by channel",
		}, []string{"channel"}),
		FramesEncoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_encoded_total",
			Help:      "Total screen frame packets encoded",
		}),
		ControlMessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_messages_sent_total",
			Help:      "Total control-channel messages sent by kind",
		}, []string{"kind"}),
		ControlMessagesDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_messages_denied_total",
			Help:      "Total control-channel messages rejected for missing permission",
		}, []string{"kind"}),

		ReplayRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_rejections_total",
			Help:      "Total packets rejected by the replay filter",
		}),
		EnvelopeOpenErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelope_open_errors_total",
			Help:      "Total envelope authentication/decryption failures",
		}),

		AuditEntriesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_written_total",
			Help:      "Total audit log entries written",
		}),
	}
}

// RecordInviteIssued records a new pairing invite.
func (m *Metrics) RecordInviteIssued() { m.InvitesIssued.Inc() }

// RecordInviteConsumed records a pairing invite being consumed.
func (m *Metrics) RecordInviteConsumed() {
	m.InvitesConsumed.Inc()
	m.PairingsActive.Inc()
}

// RecordInviteExpired records a pairing invite expiring unused.
func (m *Metrics) RecordInviteExpired() { m.InvitesExpired.Inc() }

// RecordInviteRateLimited records an invite attempt rejected by the rate limiter.
func (m *Metrics) RecordInviteRateLimited() { m.InvitesRateLimited.Inc() }

// RecordPairingApproval records a pairing approval decision.
func (m *Metrics) RecordPairingApproval(outcome string) {
	m.PairingApprovals.WithLabelValues(outcome).Inc()
}

// RecordPairingRevoked records a pairing being revoked.
func (m *Metrics) RecordPairingRevoked() {
	m.PairingRevocations.Inc()
	m.PairingsActive.Dec()
}

// RecordSessionStart records a session being established.
func (m *Metrics) RecordSessionStart(initLatencySeconds float64) {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
	m.SessionInitLatency.Observe(initLatencySeconds)
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd() { m.SessionsActive.Dec() }

// RecordSessionInitError records a session-init failure by reason.
func (m *Metrics) RecordSessionInitError(reason string) {
	m.SessionInitErrors.WithLabelValues(reason).Inc()
}

// RecordTicketIssued records a session ticket being issued.
func (m *Metrics) RecordTicketIssued() { m.TicketsIssued.Inc() }

// RecordConsentWait records time spent waiting on interactive consent.
func (m *Metrics) RecordConsentWait(waitSeconds float64) {
	m.SessionConsentWaits.Observe(waitSeconds)
}

// RecordChannelStreamOpen records a QUIC channel stream opening.
func (m *Metrics) RecordChannelStreamOpen() { m.ChannelStreamsOpen.Inc() }

// RecordChannelStreamClose records a QUIC channel stream closing.
func (m *Metrics) RecordChannelStreamClose() { m.ChannelStreamsOpen.Dec() }

// RecordBytesSent records bytes sent on a channel.
func (m *Metrics) RecordBytesSent(channel string, n int) {
	m.BytesSent.WithLabelValues(channel).Add(float64(n))
}

// RecordBytesReceived records bytes received on a channel.
func (m *Metrics) RecordBytesReceived(channel string, n int) {
	m.BytesReceived.WithLabelValues(channel).Add(float64(n))
}

// RecordFrameEncoded records a screen frame packet being encoded.
func (m *Metrics) RecordFrameEncoded() { m.FramesEncoded.Inc() }

// RecordControlMessageSent records a control message being sent by kind.
func (m *Metrics) RecordControlMessageSent(kind string) {
	m.ControlMessagesSent.WithLabelValues(kind).Inc()
}

// RecordControlMessageDenied records a control message rejected for missing permission.
func (m *Metrics) RecordControlMessageDenied(kind string) {
	m.ControlMessagesDenied.WithLabelValues(kind).Inc()
}

// RecordReplayRejection records a packet rejected by the replay filter.
func (m *Metrics) RecordReplayRejection() { m.ReplayRejections.Inc() }

// RecordEnvelopeOpenError records an envelope authentication failure.
func (m *Metrics) RecordEnvelopeOpenError() { m.EnvelopeOpenErrors.Inc() }

// RecordAuditEntry records an audit log entry being written.
func (m *Metrics) RecordAuditEntry() { m.AuditEntriesWritten.Inc() }
