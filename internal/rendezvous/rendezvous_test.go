package rendezvous

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
)

func sealTestEnvelope(t *testing.T, sender, recipient *identity.Keypair, plaintext string) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Seal(sender, recipient.ID(), recipient.KexPub, "test_msg_v1", []byte(plaintext), time.Now())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return env
}

func openTestEnvelope(env *envelope.Envelope, recipient *identity.Keypair) ([]byte, identity.ID32, error) {
	return envelope.Open(env, recipient.KexPriv)
}

func TestRoundTrip(t *testing.T) {
	device, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	operator, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	done := make(chan struct{})
	handler := &Handler{
		OnConnect: func(ctx context.Context, mb Mailbox, _ string) {
			defer close(done)
			env, err := mb.RecvEnvelope(ctx)
			if err != nil {
				t.Errorf("server recv: %v", err)
				return
			}
			plaintext, _, err := openTestEnvelope(env, device)
			if err != nil {
				t.Errorf("server open: %v", err)
				return
			}
			if string(plaintext) != "hello device" {
				t.Errorf("unexpected plaintext: %q", plaintext)
			}
			reply := sealTestEnvelope(t, device, operator, "reply")
			if err := mb.SendEnvelope(ctx, reply); err != nil {
				t.Errorf("server send: %v", err)
			}
		},
	}

	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + Path

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url, 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	req := sealTestEnvelope(t, operator, device, "hello device")
	if err := client.SendEnvelope(ctx, req); err != nil {
		t.Fatalf("client send: %v", err)
	}

	resp, err := client.RecvEnvelope(ctx)
	if err != nil {
		t.Fatalf("client recv: %v", err)
	}
	plaintext, _, err := openTestEnvelope(resp, operator)
	if err != nil {
		t.Fatalf("client open: %v", err)
	}
	if string(plaintext) != "reply" {
		t.Errorf("unexpected reply plaintext: %q", plaintext)
	}

	<-done
}
