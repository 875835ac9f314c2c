// Package operator implements zrcctl, the operator-side client: it
// redeems invites, negotiates sessions against a paired device, and
// drives the resulting QUIC session's Control and Frames channels
// (spec.md §2's "operator" role).
package operator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zrc-project/zrc/internal/audit"
	"github.com/zrc-project/zrc/internal/config"
	"github.com/zrc-project/zrc/internal/control"
	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/logging"
	"github.com/zrc-project/zrc/internal/metrics"
	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/rendezvous"
	"github.com/zrc-project/zrc/internal/sessioninit"
	"github.com/zrc-project/zrc/internal/store"
	"github.com/zrc-project/zrc/internal/wire"
)

// Operator is the zrcctl client: identity, its own view of pairing
// records (one per device it has paired with), and the active session
// set.
type Operator struct {
	cfg     *config.OperatorConfig
	keys    *identity.Keypair
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Log

	pairings   *store.PairingStore
	controlSrv *control.Server

	display FrameSink
	input   InputSource

	sessionsMu sync.RWMutex
	sessions   map[string]*clientSession

	running  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option customizes an Operator beyond what its config expresses.
type Option func(*Operator)

// WithFrameSink installs the collaborator that renders incoming Frames
// packets (spec.md §6). Without one, received frames are decoded and
// counted but otherwise dropped.
func WithFrameSink(fs FrameSink) Option {
	return func(o *Operator) { o.display = fs }
}

// WithInputSource installs the collaborator that produces local input
// events to send to the device (spec.md §6). Without one, a session only
// receives frames; it never sends Control-channel input.
func WithInputSource(is InputSource) Option {
	return func(o *Operator) { o.input = is }
}

// New constructs an Operator from configuration.
func New(cfg *config.OperatorConfig, opts ...Option) (*Operator, error) {
	logger := logging.NewLogger(cfg.Agent.LogLevel, cfg.Agent.LogFormat)

	keys, err := identity.NewFileKeyStore(cfg.Agent.DataDir).LoadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("operator: load identity: %w", err)
	}

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.Path, keys)
		if err != nil {
			return nil, fmt.Errorf("operator: open audit log: %w", err)
		}
	} else {
		auditLog = audit.NewWithWriter(discardWriter{}, keys)
	}

	o := &Operator{
		cfg:      cfg,
		keys:     keys,
		logger:   logger,
		metrics:  metrics.NewMetricsWithRegistry(prometheus.NewRegistry()),
		audit:    auditLog,
		pairings: store.NewPairingStore(),
		sessions: make(map[string]*clientSession),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.controlSrv = control.NewServer(control.ServerConfig{
		SocketPath:   cfg.Control.SocketPath,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}, o)

	return o, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// ID implements control.AgentInfo.
func (o *Operator) ID() identity.ID32 { return o.keys.ID() }

// IsRunning implements control.AgentInfo.
func (o *Operator) IsRunning() bool { return o.running.Load() }

// GetPairings implements control.AgentInfo.
func (o *Operator) GetPairings() []control.PairingInfo {
	records := o.pairings.List()
	out := make([]control.PairingInfo, 0, len(records))
	for _, r := range records {
		out = append(out, control.PairingInfo{
			OperatorID:         r.DeviceID.String(),
			PairingID:          fmt.Sprintf("%x", r.PairingID),
			Permissions:        permissionStrings(r.GrantedPermissions),
			UnattendedEnabled:  r.UnattendedEnabled,
			RequireConsentEach: r.RequireConsentEachTime,
		})
	}
	return out
}

// GetSessions implements control.AgentInfo.
func (o *Operator) GetSessions() []control.SessionInfo {
	o.sessionsMu.RLock()
	defer o.sessionsMu.RUnlock()
	out := make([]control.SessionInfo, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, control.SessionInfo{
			SessionID:  s.sessionID,
			OperatorID: s.deviceID.String(),
			StartedAt:  s.startedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func permissionStrings(set wire.PermissionSet) []string {
	perms := set.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Start brings up the local control API.
func (o *Operator) Start() error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("operator: already running")
	}
	if err := o.controlSrv.Start(); err != nil {
		o.running.Store(false)
		return fmt.Errorf("operator: start control server: %w", err)
	}
	o.logger.Info("operator started", logging.KeyDeviceID, o.keys.ID().ShortString())
	return nil
}

// Stop tears every active session and the control server down.
func (o *Operator) Stop() error {
	o.stopOnce.Do(func() {
		o.running.Store(false)

		o.sessionsMu.Lock()
		for _, s := range o.sessions {
			s.cancel()
		}
		o.sessionsMu.Unlock()

		if o.controlSrv != nil {
			o.controlSrv.Stop()
		}
		o.wg.Wait()
		o.audit.Close()
		o.logger.Info("operator stopped", logging.KeyDeviceID, o.keys.ID().ShortString())
	})
	return nil
}

// Pair redeems an out-of-band invite code against its issuing device,
// implementing the controller's half of spec.md §4.3 end to end: decode
// the code, seal a PairRequest, exchange it over a rendezvous mailbox,
// verify the receipt, and persist the resulting pairing record.
func (o *Operator) Pair(ctx context.Context, inviteCode string, requestSAS bool) (*pairing.Record, error) {
	decoded, err := pairing.DecodeInviteCode(inviteCode)
	if err != nil {
		return nil, fmt.Errorf("operator: decode invite code: %w", err)
	}
	now := time.Now()
	if now.After(decoded.ExpiresAt) {
		return nil, fmt.Errorf("operator: invite expired at %s", decoded.ExpiresAt)
	}

	req, err := pairing.BuildPairRequest(o.keys, decoded.AsInvite(), requestSAS, now)
	if err != nil {
		return nil, fmt.Errorf("operator: build pair request: %w", err)
	}

	mb, err := rendezvous.Dial(ctx, decoded.RendezvousAddr, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("operator: dial rendezvous: %w", err)
	}
	defer mb.Close()

	if err := mb.SendEnvelope(ctx, req); err != nil {
		return nil, fmt.Errorf("operator: send pair request: %w", err)
	}
	replyEnv, err := mb.RecvEnvelope(ctx)
	if err != nil {
		o.metrics.RecordPairingApproval("denied")
		return nil, fmt.Errorf("operator: pairing denied or connection closed: %w", err)
	}

	plaintext, _, err := envelope.Open(replyEnv, o.keys.KexPriv)
	if err != nil {
		return nil, fmt.Errorf("operator: open pair receipt: %w", err)
	}
	receipt, err := wire.DecodePairReceiptV1(plaintext)
	if err != nil {
		return nil, fmt.Errorf("operator: decode pair receipt: %w", err)
	}

	record, err := pairing.VerifyReceipt(receipt, o.keys)
	if err != nil {
		o.metrics.RecordPairingApproval("denied")
		return nil, fmt.Errorf("operator: verify receipt: %w", err)
	}
	if err := o.pairings.Put(record); err != nil {
		return nil, fmt.Errorf("operator: persist pairing record: %w", err)
	}
	o.metrics.RecordPairingApproval("approved")
	o.audit.Record(audit.OutcomePairApproved, record.DeviceID, o.keys.ID(), "", now)
	return record, nil
}

// Connect negotiates and establishes a session against an already-paired
// device, implementing spec.md §4.5 and §4.7 end to end: session-init
// exchange, ticket verification, QUIC dial, Control handshake, and then
// serving the session until ctx is cancelled or the device closes it.
func (o *Operator) Connect(ctx context.Context, deviceID identity.ID32, rendezvousAddr string) (*clientSession, error) {
	record, ok := o.pairings.Get(pairing.Key{DeviceID: deviceID, OperatorID: o.keys.ID()})
	if !ok {
		return nil, fmt.Errorf("operator: no pairing record for device %s", deviceID.ShortString())
	}

	sessionID, err := cryptoutil.Random16()
	if err != nil {
		return nil, fmt.Errorf("operator: generate session id: %w", err)
	}

	start := time.Now()
	req, nonce, err := sessioninit.BuildSessionInitRequest(o.keys, record, sessionID[:], nil, "quic", start)
	if err != nil {
		return nil, fmt.Errorf("operator: build session init request: %w", err)
	}

	mb, err := rendezvous.Dial(ctx, rendezvousAddr, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("operator: dial rendezvous: %w", err)
	}
	defer mb.Close()

	if err := mb.SendEnvelope(ctx, req); err != nil {
		return nil, fmt.Errorf("operator: send session init request: %w", err)
	}
	replyEnv, err := mb.RecvEnvelope(ctx)
	if err != nil {
		o.metrics.RecordSessionInitError("transport")
		return nil, fmt.Errorf("operator: session init denied or connection closed: %w", err)
	}
	plaintext, _, err := envelope.Open(replyEnv, o.keys.KexPriv)
	if err != nil {
		return nil, fmt.Errorf("operator: open session init response: %w", err)
	}
	resp, err := wire.DecodeSessionInitResponseV1(plaintext)
	if err != nil {
		return nil, fmt.Errorf("operator: decode session init response: %w", err)
	}
	if err := sessioninit.VerifyResponse(resp, record, sessionID[:], nonce, start); err != nil {
		o.metrics.RecordSessionInitError("verify")
		return nil, fmt.Errorf("operator: verify session init response: %w", err)
	}
	if resp.RequiresConsent {
		return nil, fmt.Errorf("operator: device requires interactive consent for this session")
	}

	sess, err := o.dialSession(ctx, record, sessionID[:], nonce, resp)
	if err != nil {
		return nil, err
	}
	o.metrics.RecordSessionStart(time.Since(start).Seconds())
	o.audit.Record(audit.OutcomeSessionGranted, deviceID, o.keys.ID(), "", start)
	return sess, nil
}
