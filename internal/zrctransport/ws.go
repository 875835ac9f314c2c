package zrctransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// wsReadLimit bounds a single control-plane envelope frame. Envelopes are
// small control messages (pairing/session-init), nowhere near frame data,
// so this is far below zrctransport.MaxFrameSize.
const wsReadLimit = 1 * 1024 * 1024

// EnvelopeTransport implements the "Control-plane transport" collaborator
// spec.md §6 requires: send_envelope/recv_envelope over a single
// WebSocket connection, used to bootstrap pairing and session-init before
// a QUIC session exists.
type EnvelopeTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DialEnvelopeTransport opens a WebSocket control-plane connection to a
// device's rendezvous endpoint.
func DialEnvelopeTransport(ctx context.Context, url string, tlsConfig *tls.Config, timeout time.Duration) (*EnvelopeTransport, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	httpClient := &http.Client{}
	if tlsConfig != nil {
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: httpClient})
	if err != nil {
		return nil, fmt.Errorf("zrctransport: websocket dial: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)
	return &EnvelopeTransport{conn: conn}, nil
}

// AcceptEnvelopeTransport upgrades an already-accepted HTTP request to a
// WebSocket control-plane connection, for the device side of the
// rendezvous.
func AcceptEnvelopeTransport(w http.ResponseWriter, r *http.Request) (*EnvelopeTransport, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("zrctransport: websocket accept: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)
	return &EnvelopeTransport{conn: conn}, nil
}

// SendEnvelope implements the send_envelope collaborator contract: the
// recipient id and route hint are routing metadata the untrusted
// transport may use, never cryptographic material, since the envelope
// itself is self-authenticating.
func (t *EnvelopeTransport) SendEnvelope(ctx context.Context, recipientID [32]byte, routeHint string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
		return fmt.Errorf("zrctransport: send envelope: %w", err)
	}
	return nil
}

// RecvEnvelope blocks until the next envelope arrives on the wire. The
// transport is untrusted and may reorder or duplicate messages (spec.md
// §6); callers must not assume delivery order.
func (t *EnvelopeTransport) RecvEnvelope(ctx context.Context) ([]byte, error) {
	_, payload, err := t.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("zrctransport: recv envelope: %w", err)
	}
	return payload, nil
}

// Close closes the underlying WebSocket connection.
func (t *EnvelopeTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "control-plane transport closed")
}
