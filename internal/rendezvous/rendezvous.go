// Package rendezvous is the WebSocket implementation of the
// "control-plane transport" external collaborator (spec.md §6): a
// send_envelope/recv_envelope conduit that carries sealed envelopes
// between device and operator before either side has a QUIC session to
// use instead. It never sees plaintext — every message it moves is an
// already-sealed envelope.Envelope.
package rendezvous

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/zrc-project/zrc/internal/envelope"
)

// Path is the default HTTP path a device's rendezvous endpoint is served
// on, and the path an operator dials.
const Path = "/rendezvous"

// Mailbox is the transport-agnostic send_envelope/recv_envelope
// collaborator spec.md §6 requires. zrctransport's QUIC channels are the
// other ControlTransport implementation; this package is the one usable
// before a session exists.
type Mailbox interface {
	SendEnvelope(ctx context.Context, env *envelope.Envelope) error
	RecvEnvelope(ctx context.Context) (*envelope.Envelope, error)
	// CloseDenied closes the connection with no reply, see conn.CloseDenied.
	CloseDenied(reason string) error
	Close() error
}

// conn adapts a *websocket.Conn to Mailbox. Both the dialing (operator)
// side and the accepting (device) side share this implementation; only
// how the underlying *websocket.Conn was obtained differs.
type conn struct {
	ws *websocket.Conn
}

func (c *conn) SendEnvelope(ctx context.Context, env *envelope.Envelope) error {
	if err := c.ws.Write(ctx, websocket.MessageBinary, env.Encode()); err != nil {
		return fmt.Errorf("rendezvous: write envelope: %w", err)
	}
	return nil
}

func (c *conn) RecvEnvelope(ctx context.Context) (*envelope.Envelope, error) {
	msgType, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read envelope: %w", err)
	}
	if msgType != websocket.MessageBinary {
		return nil, fmt.Errorf("rendezvous: unexpected message type %v", msgType)
	}
	env, err := envelope.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: decode envelope: %w", err)
	}
	return env, nil
}

// CloseDenied closes the connection without a reply, the signal this
// module uses in place of inventing a wire-level error-reply message type
// (spec.md §6's frozen msg_type tag set has none): the peer observes the
// connection closing with a policy-violation status instead of receiving
// a sealed error envelope.
func (c *conn) CloseDenied(reason string) error {
	return c.ws.Close(websocket.StatusPolicyViolation, reason)
}

func (c *conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// Dial connects to a device's rendezvous endpoint as an operator.
func Dial(ctx context.Context, url string, timeout time.Duration) (Mailbox, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: dial: %w", err)
	}
	return &conn{ws: ws}, nil
}

// Handler is an http.Handler that upgrades every request to a WebSocket
// connection and hands the resulting Mailbox to OnConnect. OnConnect owns
// the connection's lifetime: when it returns, the connection is closed.
type Handler struct {
	// OnConnect is invoked once per accepted connection, in the request's
	// own goroutine (net/http already gives each request one).
	OnConnect func(ctx context.Context, mb Mailbox, remoteAddr string)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	mb := &conn{ws: ws}
	defer mb.Close()
	h.OnConnect(r.Context(), mb, r.RemoteAddr)
}
