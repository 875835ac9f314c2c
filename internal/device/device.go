// Package device implements zrcd, the device-side daemon: it owns the
// machine's long-term identity, runs the pairing and session-init host
// state machines, and serves approved sessions over QUIC (spec.md §2's
// "device" role).
package device

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/zrc-project/zrc/internal/audit"
	"github.com/zrc-project/zrc/internal/certutil"
	"github.com/zrc-project/zrc/internal/config"
	"github.com/zrc-project/zrc/internal/control"
	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/logging"
	"github.com/zrc-project/zrc/internal/metrics"
	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/rendezvous"
	"github.com/zrc-project/zrc/internal/sessioninit"
	"github.com/zrc-project/zrc/internal/store"
	"github.com/zrc-project/zrc/internal/wire"
	"github.com/zrc-project/zrc/internal/zrctransport"
)

// Device is the zrcd daemon: identity, stores, the pairing/session-init
// state machines, the rendezvous (WebSocket) listener, the QUIC session
// listener and the local control API, wired together.
type Device struct {
	cfg    *config.DeviceConfig
	keys   *identity.Keypair
	logger *slog.Logger
	metrics *metrics.Metrics
	audit  *audit.Log

	invites  *store.InviteStore
	pairings *store.PairingStore
	approver pairing.Approver

	pairingHost *pairing.Host
	sessionHost *sessioninit.Host
	pairLimiter *rate.Limiter

	leaf         *certutil.Leaf
	quicListener *zrctransport.Listener
	rendezvousHTTP *http.Server
	controlSrv   *control.Server

	capture FrameSource
	input   InputSink

	sessionsMu sync.RWMutex
	sessions   map[string]sessionRecord

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// sessionRecord is the bookkeeping kept for GetSessions() and for tearing
// a session down on Stop.
type sessionRecord struct {
	sessionID  string
	operatorID identity.ID32
	startedAt  time.Time
	cancel     context.CancelFunc
}

// Option customizes a Device beyond what its config expresses.
type Option func(*Device)

// WithFrameSource installs the platform capture collaborator (spec.md §6).
// Without one, the Frames channel is never served to connecting operators.
func WithFrameSource(fs FrameSource) Option {
	return func(d *Device) { d.capture = fs }
}

// WithInputSink installs the platform input/clipboard collaborator
// (spec.md §6). Without one, incoming Control-channel input and clipboard
// messages are permission-checked but otherwise dropped.
func WithInputSink(is InputSink) Option {
	return func(d *Device) { d.input = is }
}

// New constructs a Device from configuration. approver is the external
// PairingApprover collaborator (spec.md §6); callers choose between
// cliapprove.Interactive and cliapprove.Headless (or their own) rather
// than this package deciding for them.
func New(cfg *config.DeviceConfig, approver pairing.Approver, opts ...Option) (*Device, error) {
	if approver == nil {
		return nil, fmt.Errorf("device: approver is required")
	}

	logger := logging.NewLogger(cfg.Agent.LogLevel, cfg.Agent.LogFormat)

	keys, err := identity.NewFileKeyStore(cfg.Agent.DataDir).LoadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("device: load identity: %w", err)
	}

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.Path, keys)
		if err != nil {
			return nil, fmt.Errorf("device: open audit log: %w", err)
		}
	} else {
		auditLog = audit.NewWithWriter(discardWriter{}, keys)
	}

	d := &Device{
		cfg:      cfg,
		keys:     keys,
		logger:   logger,
		metrics:  metrics.NewMetricsWithRegistry(prometheus.NewRegistry()),
		audit:    auditLog,
		invites:  store.NewInviteStore(),
		pairings: store.NewPairingStore(),
		approver: approver,
		sessions: make(map[string]sessionRecord),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.pairingHost = &pairing.Host{
		Device:   keys,
		Invites:  d.invites,
		Records:  d.pairings,
		Approver: d.approver,
	}
	d.sessionHost = &sessioninit.Host{
		Device:  keys,
		Records: d.pairings,
		TTL:     cfg.Session.TicketTTL,
	}
	d.pairLimiter = rate.NewLimiter(rate.Limit(cfg.Pairing.InviteRateLimit), cfg.Pairing.InviteRateBurst)

	d.controlSrv = control.NewServer(control.ServerConfig{
		SocketPath:   cfg.Control.SocketPath,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}, d)

	leaf, err := certutil.GenerateLeaf(certutil.DefaultLeafOptions(displayNameOrID(cfg, keys)))
	if err != nil {
		return nil, fmt.Errorf("device: generate leaf certificate: %w", err)
	}
	d.leaf = leaf

	return d, nil
}

func displayNameOrID(cfg *config.DeviceConfig, keys *identity.Keypair) string {
	if cfg.Agent.DisplayName != "" {
		return cfg.Agent.DisplayName
	}
	return keys.ID().ShortString()
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// ID implements control.AgentInfo.
func (d *Device) ID() identity.ID32 { return d.keys.ID() }

// IsRunning implements control.AgentInfo.
func (d *Device) IsRunning() bool { return d.running.Load() }

// GetPairings implements control.AgentInfo.
func (d *Device) GetPairings() []control.PairingInfo {
	records := d.pairings.List()
	out := make([]control.PairingInfo, 0, len(records))
	for _, r := range records {
		out = append(out, control.PairingInfo{
			OperatorID:         r.OperatorID.String(),
			PairingID:          fmt.Sprintf("%x", r.PairingID),
			Permissions:        permissionStrings(r.GrantedPermissions),
			UnattendedEnabled:  r.UnattendedEnabled,
			RequireConsentEach: r.RequireConsentEachTime,
		})
	}
	return out
}

// GetSessions implements control.AgentInfo.
func (d *Device) GetSessions() []control.SessionInfo {
	d.sessionsMu.RLock()
	defer d.sessionsMu.RUnlock()
	out := make([]control.SessionInfo, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, control.SessionInfo{
			SessionID:  s.sessionID,
			OperatorID: s.operatorID.String(),
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

// CreateInvite issues a fresh single-use invite for this device, stores
// it, and returns the out-of-band code an operator redeems to start
// pairing (spec.md §3 "Invite", §4.3).
func (d *Device) CreateInvite(ttl time.Duration, defaults wire.PermissionSet, requireConsent, requestSAS bool) (string, error) {
	if ttl <= 0 {
		ttl = d.cfg.Pairing.InviteTTL
	}
	inv, err := pairing.NewInvite(d.keys, ttl, time.Now(), defaults, requireConsent)
	if err != nil {
		return "", fmt.Errorf("device: create invite: %w", err)
	}
	d.invites.Put(d.keys.ID(), inv)
	d.metrics.RecordInviteIssued()

	code, err := pairing.EncodeInviteCode(inv, d.rendezvousURL(), requestSAS)
	if err != nil {
		return "", fmt.Errorf("device: encode invite code: %w", err)
	}
	return code, nil
}

func (d *Device) rendezvousURL() string {
	return "ws://" + d.cfg.Rendezvous.Address + rendezvous.Path
}

// RevokePairing destroys a pairing record, closing the session-init path
// for that operator going forward (spec.md's supplemented revocation
// operation).
func (d *Device) RevokePairing(operatorID identity.ID32) error {
	key := pairing.Key{DeviceID: d.keys.ID(), OperatorID: operatorID}
	if err := d.pairings.Revoke(key); err != nil {
		return fmt.Errorf("device: revoke pairing: %w", err)
	}
	d.metrics.RecordPairingRevoked()
	d.audit.Record(audit.OutcomePairingRevoked, d.keys.ID(), operatorID, "revoked by operator", time.Now())
	return nil
}

// Start brings up the rendezvous listener, the QUIC session listener and
// the local control API, then begins accepting connections.
func (d *Device) Start() error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("device: already running")
	}

	cert, err := d.leaf.TLSCertificate()
	if err != nil {
		d.running.Store(false)
		return fmt.Errorf("device: load leaf certificate: %w", err)
	}
	ql, err := zrctransport.Listen(d.cfg.Rendezvous.QUICAddress, cert)
	if err != nil {
		d.running.Store(false)
		return fmt.Errorf("device: listen quic: %w", err)
	}
	d.quicListener = ql

	mux := http.NewServeMux()
	mux.Handle(rendezvous.Path, &rendezvous.Handler{OnConnect: d.handleRendezvousConn})
	d.rendezvousHTTP = &http.Server{Addr: d.cfg.Rendezvous.Address, Handler: mux}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.rendezvousHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("rendezvous server exited", logging.KeyError, err)
		}
	}()

	d.wg.Add(1)
	go d.acceptSessionsLoop()

	if err := d.controlSrv.Start(); err != nil {
		d.running.Store(false)
		return fmt.Errorf("device: start control server: %w", err)
	}

	d.logger.Info("device started",
		logging.KeyDeviceID, d.keys.ID().ShortString(),
		logging.KeyAddress, d.cfg.Rendezvous.Address)
	return nil
}

// Stop shuts every component down and waits for in-flight goroutines to
// exit.
func (d *Device) Stop() error {
	d.stopOnce.Do(func() {
		d.running.Store(false)
		close(d.stopCh)

		if d.rendezvousHTTP != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			d.rendezvousHTTP.Shutdown(ctx)
			cancel()
		}
		if d.quicListener != nil {
			d.quicListener.Close()
		}
		if d.controlSrv != nil {
			d.controlSrv.Stop()
		}

		d.sessionsMu.Lock()
		for _, s := range d.sessions {
			s.cancel()
		}
		d.sessionsMu.Unlock()

		d.wg.Wait()
		d.audit.Close()

		d.logger.Info("device stopped", logging.KeyDeviceID, d.keys.ID().ShortString())
	})
	return nil
}

// handleRendezvousConn dispatches envelopes arriving over a WebSocket
// mailbox connection (spec.md §4.3, §4.5): each connection may carry a
// PairRequest or a SessionInitRequest, handled in sequence until the
// operator closes the connection.
func (d *Device) handleRendezvousConn(ctx context.Context, mb rendezvous.Mailbox, remoteAddr string) {
	for {
		env, err := mb.RecvEnvelope(ctx)
		if err != nil {
			return
		}

		// msg_type lives in the envelope's plaintext header, so an
		// unrecognized tag is rejected before spending a signature
		// verify and AEAD decrypt on it.
		if !recognizedMsgType(env.Header.MsgType) {
			notFound := coreerr.NotFound(fmt.Sprintf("unsupported msg_type %q", env.Header.MsgType))
			d.logger.Warn("rendezvous request denied",
				logging.KeyComponent, "device",
				logging.KeyRemoteAddr, remoteAddr,
				logging.KeyError, notFound)
			mb.CloseDenied(notFound.Error())
			return
		}

		if !d.pairLimiter.Allow() {
			d.metrics.RecordInviteRateLimited()
			mb.CloseDenied("rate limited")
			return
		}

		plaintext, senderID, err := envelope.Open(env, d.keys.KexPriv)
		if err != nil {
			d.metrics.RecordEnvelopeOpenError()
			d.audit.Record(audit.OutcomeEnvelopeFailed, d.keys.ID(), identity.ID32{}, err.Error(), time.Now())
			mb.CloseDenied("envelope open failed")
			return
		}

		reply, err := d.dispatch(ctx, env.Header.MsgType, plaintext, senderID)
		if err != nil {
			d.logger.Warn("rendezvous request denied",
				logging.KeyComponent, "device",
				logging.KeyRemoteAddr, remoteAddr,
				logging.KeyError, err)
			mb.CloseDenied(err.Error())
			return
		}
		if err := mb.SendEnvelope(ctx, reply); err != nil {
			return
		}
	}
}

// recognizedMsgType reports whether msgType is one dispatch knows how to
// handle. Kept in lockstep with dispatch's switch so an unknown tag is
// rejected with coreerr.NotFound before envelope.Open ever runs.
func recognizedMsgType(msgType string) bool {
	switch msgType {
	case "pair_request_v1", "session_init_request_v1":
		return true
	default:
		return false
	}
}

func (d *Device) dispatch(ctx context.Context, msgType string, plaintext []byte, senderID identity.ID32) (*envelope.Envelope, error) {
	switch msgType {
	case "pair_request_v1":
		return d.handlePairRequest(ctx, plaintext)
	case "session_init_request_v1":
		return d.handleSessionInitRequest(plaintext)
	default:
		return nil, coreerr.NotFound(fmt.Sprintf("unsupported msg_type %q", msgType))
	}
}

func (d *Device) handlePairRequest(ctx context.Context, plaintext []byte) (*envelope.Envelope, error) {
	req, err := wire.DecodePairRequestV1(plaintext)
	if err != nil {
		return nil, fmt.Errorf("device: decode pair request: %w", err)
	}
	var operatorID identity.ID32
	if len(req.OperatorID) == 32 {
		copy(operatorID[:], req.OperatorID)
	}

	env, err := d.pairingHost.HandlePairRequest(ctx, req, time.Now())
	if err != nil {
		d.metrics.RecordPairingApproval("denied")
		d.audit.Record(audit.OutcomePairDenied, d.keys.ID(), operatorID, err.Error(), time.Now())
		return nil, err
	}
	d.metrics.RecordPairingApproval("approved")
	d.audit.Record(audit.OutcomePairApproved, d.keys.ID(), operatorID, "", time.Now())
	return env, nil
}

func (d *Device) handleSessionInitRequest(plaintext []byte) (*envelope.Envelope, error) {
	req, err := wire.DecodeSessionInitRequestV1(plaintext)
	if err != nil {
		return nil, fmt.Errorf("device: decode session init request: %w", err)
	}
	var operatorID identity.ID32
	if len(req.OperatorID) == 32 {
		copy(operatorID[:], req.OperatorID)
	}

	start := time.Now()
	env, err := d.sessionHost.HandleSessionInitRequest(req, start, func() (sessioninit.QUICParams, error) {
		return sessioninit.QUICParams{
			Endpoint:      d.cfg.Rendezvous.QUICAddress,
			ALPN:          zrctransport.ALPN,
			ServerCertDER: d.leaf.DER,
		}, nil
	})
	if err != nil {
		d.metrics.RecordSessionInitError(errorReason(err))
		d.audit.Record(audit.OutcomeSessionDenied, d.keys.ID(), operatorID, err.Error(), time.Now())
		return nil, err
	}
	d.metrics.RecordSessionStart(time.Since(start).Seconds())
	d.metrics.RecordTicketIssued()
	d.audit.Record(audit.OutcomeSessionGranted, d.keys.ID(), operatorID, "", time.Now())
	return env, nil
}

func errorReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
