package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/identity"
)

// mockAgent implements AgentInfo for testing.
type mockAgent struct {
	id       identity.ID32
	running  bool
	pairings []PairingInfo
	sessions []SessionInfo
}

func (m *mockAgent) ID() identity.ID32 { return m.id }
func (m *mockAgent) IsRunning() bool   { return m.running }
func (m *mockAgent) GetPairings() []PairingInfo { return m.pairings }
func (m *mockAgent) GetSessions() []SessionInfo { return m.sessions }

func TestNewServer(t *testing.T) {
	cfg := DefaultServerConfig()
	agent := &mockAgent{running: true}

	s := NewServer(cfg, agent)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestServerStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "control.sock")

	cfg := ServerConfig{
		SocketPath:   socketPath,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	kp, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	agent := &mockAgent{id: kp.ID(), running: true}

	s := NewServer(cfg, agent)

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected server to be running")
	}
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Error("socket file does not exist")
	}

	if err := s.Stop(); err != nil {
		t.Errorf("failed to stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected server to be stopped")
	}
}

func TestServerClientIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "control.sock")

	cfg := ServerConfig{
		SocketPath:   socketPath,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	operator, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	agent := &mockAgent{
		id:      device.ID(),
		running: true,
		pairings: []PairingInfo{
			{
				OperatorID:  operator.ID().String(),
				Permissions: []string{"view", "input"},
			},
		},
		sessions: []SessionInfo{
			{SessionID: "sess-1", OperatorID: operator.ID().String()},
		},
	}

	s := NewServer(cfg, agent)
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer s.Stop()

	client := NewClient(socketPath)
	defer client.Close()

	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.AgentID != device.ID().ShortString() {
		t.Errorf("expected agent ID %s, got %s", device.ID().ShortString(), status.AgentID)
	}
	if !status.Running {
		t.Error("expected running=true")
	}
	if status.PairingCount != 1 {
		t.Errorf("expected pairing count 1, got %d", status.PairingCount)
	}
	if status.SessionCount != 1 {
		t.Errorf("expected session count 1, got %d", status.SessionCount)
	}

	pairings, err := client.Pairings(ctx)
	if err != nil {
		t.Fatalf("pairings failed: %v", err)
	}
	if len(pairings.Pairings) != 1 {
		t.Errorf("expected 1 pairing, got %d", len(pairings.Pairings))
	}
	if pairings.Pairings[0].OperatorID != operator.ID().String() {
		t.Errorf("expected operator %s, got %s", operator.ID().String(), pairings.Pairings[0].OperatorID)
	}

	sessions, err := client.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	if len(sessions.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(sessions.Sessions))
	}
	if sessions.Sessions[0].SessionID != "sess-1" {
		t.Errorf("expected session id sess-1, got %s", sessions.Sessions[0].SessionID)
	}
}
