// Package control provides the local admin/status API: a Unix domain
// socket, reachable only by the local user, that zrcctl uses to inspect a
// running zrcd or zrcctl process without exposing anything to the
// network.
package control

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

// PairingInfo summarizes one pairing record for display.
type PairingInfo struct {
	OperatorID         string   `json:"operator_id"`
	PairingID          string   `json:"pairing_id"`
	Permissions        []string `json:"permissions"`
	UnattendedEnabled  bool     `json:"unattended_enabled"`
	RequireConsentEach bool     `json:"require_consent_each_time"`
}

// SessionInfo summarizes one active session for display.
type SessionInfo struct {
	SessionID  string `json:"session_id"`
	OperatorID string `json:"operator_id"`
	StartedAt  string `json:"started_at"`
}

// AgentInfo is the local state a control server exposes. Both zrcd
// (device) and zrcctl (operator) implement it against their own state.
type AgentInfo interface {
	// ID returns this process's identity.
	ID() identity.ID32

	// IsRunning returns true if the process's main loop is up.
	IsRunning() bool

	// GetPairings returns the current pairing records.
	GetPairings() []PairingInfo

	// GetSessions returns the currently active sessions.
	GetSessions() []SessionInfo
}

// StatusResponse is the response for the status endpoint.
type StatusResponse struct {
	AgentID      string `json:"agent_id"`
	Running      bool   `json:"running"`
	PairingCount int    `json:"pairing_count"`
	SessionCount int    `json:"session_count"`
}

// PairingsResponse is the response for the pairings endpoint.
type PairingsResponse struct {
	Pairings []PairingInfo `json:"pairings"`
}

// SessionsResponse is the response for the sessions endpoint.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// CreateInviteRequest is the request body for the invites endpoint.
type CreateInviteRequest struct {
	TTLSeconds     int      `json:"ttl_seconds"`
	Permissions    []string `json:"permissions"`
	RequireConsent bool     `json:"require_consent"`
	RequestSAS     bool     `json:"request_sas"`
}

// CreateInviteResponse is the response for the invites endpoint.
type CreateInviteResponse struct {
	InviteCode string `json:"invite_code"`
}

// RevokeRequest is the request body for the revoke endpoint.
type RevokeRequest struct {
	OperatorID string `json:"operator_id"`
}

// InviteIssuer is implemented by the agents that can mint invites and
// revoke pairings over the control API (SPEC_FULL.md §4.11's revocation
// operation, reached through `zrcd revoke`). Only the device role
// implements it; Server type-asserts for it at request time rather than
// widening AgentInfo, so an operator's control server can keep serving
// the read-only endpoints and answer /invites and /revoke with 501.
type InviteIssuer interface {
	CreateInvite(ttl time.Duration, defaults wire.PermissionSet, requireConsent, requestSAS bool) (string, error)
	RevokePairing(operatorID identity.ID32) error
}

// ServerConfig contains control server configuration.
type ServerConfig struct {
	SocketPath   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		SocketPath:   "./data/control.sock",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is a Unix socket HTTP server for admin/status commands.
type Server struct {
	cfg      ServerConfig
	agent    AgentInfo
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// NewServer creates a new control server.
func NewServer(cfg ServerConfig, agent AgentInfo) *Server {
	s := &Server{
		cfg:   cfg,
		agent: agent,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/pairings", s.handlePairings)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/invites", s.handleCreateInvite)
	mux.HandleFunc("/revoke", s.handleRevoke)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start starts the control server, listening on its Unix socket. Socket
// file permissions default to the process umask; callers that need a
// stricter mode should chmod the path after Start returns.
func (s *Server) Start() error {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)

	go s.server.Serve(ln)

	return nil
}

// Stop stops the control server and removes its socket file.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}

	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// SocketPath returns the socket path.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatusResponse{
		AgentID:      s.agent.ID().ShortString(),
		Running:      s.agent.IsRunning(),
		PairingCount: len(s.agent.GetPairings()),
		SessionCount: len(s.agent.GetSessions()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handlePairings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := PairingsResponse{Pairings: s.agent.GetPairings()}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := SessionsResponse{Sessions: s.agent.GetSessions()}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	issuer, ok := s.agent.(InviteIssuer)
	if !ok {
		http.Error(w, "agent does not issue invites", http.StatusNotImplemented)
		return
	}

	var req CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "decode request: "+err.Error(), http.StatusBadRequest)
		return
	}

	perms := make([]wire.Permission, len(req.Permissions))
	for i, p := range req.Permissions {
		perms[i] = wire.Permission(p)
	}

	code, err := issuer.CreateInvite(time.Duration(req.TTLSeconds)*time.Second, wire.NewPermissionSet(perms...), req.RequireConsent, req.RequestSAS)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateInviteResponse{InviteCode: code})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	issuer, ok := s.agent.(InviteIssuer)
	if !ok {
		http.Error(w, "agent does not revoke pairings", http.StatusNotImplemented)
		return
	}

	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "decode request: "+err.Error(), http.StatusBadRequest)
		return
	}
	operatorID, err := identity.ParseID32(req.OperatorID)
	if err != nil {
		http.Error(w, "parse operator_id: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := issuer.RevokePairing(operatorID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
