package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/channelmux"
	"github.com/zrc-project/zrc/internal/controlmsg"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/logging"
	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/recovery"
	"github.com/zrc-project/zrc/internal/replay"
	"github.com/zrc-project/zrc/internal/sessionaead"
	"github.com/zrc-project/zrc/internal/wire"
	"github.com/zrc-project/zrc/internal/zrctransport"
)

// FrameSink is the collaborator that renders incoming Frames-channel
// packets (spec.md §6). Implementations live outside this module
// (platform-specific display output).
type FrameSink interface {
	RenderFrame(f channelmux.FramePacket)
}

// InputSource is the collaborator that produces local input events to
// send on the Control channel (spec.md §6). Implementations live outside
// this module (platform-specific input capture, e.g. a GUI window).
type InputSource interface {
	// Events returns a channel of input events to send for the duration
	// of ctx. The channel is closed when the source stops producing
	// events.
	Events(ctx context.Context) <-chan controlmsg.InputEventV1
}

// clientSession is one established session's state, from the operator's
// point of view.
type clientSession struct {
	sessionID string
	deviceID  identity.ID32

	conn   *zrctransport.Conn
	stream *zrctransport.ChannelStream
	keys   *channelmux.SessionKeys

	startedAt time.Time
	cancel    context.CancelFunc
}

// Close tears the session's transport and zeroes its derived keys.
func (s *clientSession) Close() {
	s.cancel()
	s.stream.Close()
	s.conn.Close()
	s.keys.Zero()
}

// dialSession implements spec.md §4.7's controller half: dial the pinned
// QUIC endpoint, perform the Control handshake, derive session keys, and
// start the Control/Frames serve loops.
func (o *Operator) dialSession(ctx context.Context, record *pairing.Record, sessionID, ticketBindingNonce []byte, resp *wire.SessionInitResponseV1) (*clientSession, error) {
	conn, err := zrctransport.Dial(ctx, resp.QUICEndpoint, resp.QUICServerCertDER, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("operator: dial quic: %w", err)
	}

	operatorID := o.keys.ID()
	stream, err := channelmux.DialControlHandshake(ctx, conn, sessionID, record.DeviceID[:], operatorID[:], ticketBindingNonce, resp.IssuedTicket)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("operator: control handshake: %w", err)
	}

	keys, err := channelmux.DeriveSessionKeys(resp.IssuedTicket)
	if err != nil {
		stream.Close()
		conn.Close()
		return nil, fmt.Errorf("operator: derive session keys: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &clientSession{
		sessionID: fmt.Sprintf("%x", sessionID),
		deviceID:  record.DeviceID,
		conn:      conn,
		stream:    stream,
		keys:      keys,
		startedAt: time.Now(),
		cancel:    cancel,
	}

	o.sessionsMu.Lock()
	o.sessions[sess.sessionID] = sess
	o.sessionsMu.Unlock()

	o.metrics.RecordChannelStreamOpen()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.endSession(sess)
		defer recovery.RecoverWithLog(o.logger, "operator.serveControl")
		o.serveControl(sessCtx, sess, record.GrantedPermissions)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer recovery.RecoverWithLog(o.logger, "operator.receiveFrames")
		o.receiveFrames(sessCtx, conn, keys.DeviceToOperator.Frames)
	}()

	if o.input != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer recovery.RecoverWithLog(o.logger, "operator.sendInput")
			o.sendInput(sessCtx, sess, keys.OperatorToDevice.Control, record.GrantedPermissions)
		}()
	}

	return sess, nil
}

func (o *Operator) endSession(sess *clientSession) {
	o.sessionsMu.Lock()
	delete(o.sessions, sess.sessionID)
	o.sessionsMu.Unlock()
	o.metrics.RecordChannelStreamClose()
	sess.Close()
}

// serveControl reads frames arriving from the device on the Control
// channel opened during the handshake, replay-checks, decrypts and decodes
// them, and then discards them; it sends no reply.
func (o *Operator) serveControl(ctx context.Context, sess *clientSession, granted wire.PermissionSet) {
	filter := replay.NewFilter(replay.DefaultWindowBits)
	recv := sess.keys.DeviceToOperator.Control
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := sess.stream.ReadFrame()
		if err != nil {
			return
		}
		ciphertext, counter, err := sessionaead.DecodeSealedFrame(payload)
		if err != nil {
			continue
		}
		if err := filter.Accept(counter); err != nil {
			o.metrics.RecordReplayRejection()
			continue
		}
		plaintext, err := recv.Open(ciphertext, counter)
		if err != nil {
			o.metrics.RecordEnvelopeOpenError()
			continue
		}
		if _, err := controlmsg.Decode(plaintext); err != nil {
			continue
		}
	}
}

// sendInput pulls local input events and seals+sends them on the Control
// stream, permission-checking against the pairing's granted set before
// transmission so a denied event never crosses the wire.
func (o *Operator) sendInput(ctx context.Context, sess *clientSession, send *sessionaead.Stream, granted wire.PermissionSet) {
	if o.input == nil {
		return
	}
	events := o.input.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := controlmsg.ControlMsgV1{Kind: controlmsg.KindInputEvent, Input: ev}
			if err := controlmsg.CheckPermitted(msg, granted); err != nil {
				o.metrics.RecordControlMessageDenied(fmt.Sprintf("%d", msg.Kind))
				continue
			}
			ciphertext, counter, err := send.Seal(msg.Encode())
			if err != nil {
				continue
			}
			if err := sess.stream.WriteFrame(sessionaead.EncodeSealedFrame(ciphertext, counter)); err != nil {
				return
			}
			o.metrics.RecordControlMessageSent(fmt.Sprintf("%d", msg.Kind))
		}
	}
}

// receiveFrames accepts the device's unidirectional Frames stream and
// forwards decoded packets to the installed FrameSink, if any.
func (o *Operator) receiveFrames(ctx context.Context, conn *zrctransport.Conn, recv *sessionaead.Stream) {
	stream, channelID, err := conn.AcceptUniChannelStream(ctx)
	if err != nil {
		return
	}
	if channelID != channelmux.ChannelFrames {
		o.logger.Warn("unexpected channel on frames accept", logging.KeyChannel, channelID)
		return
	}
	filter := replay.NewFilter(replay.DefaultWindowBits)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		payload, err := stream.ReadFrame()
		if err != nil {
			return
		}
		ciphertext, counter, err := sessionaead.DecodeSealedFrame(payload)
		if err != nil {
			continue
		}
		if err := filter.Accept(counter); err != nil {
			o.metrics.RecordReplayRejection()
			continue
		}
		plaintext, err := recv.Open(ciphertext, counter)
		if err != nil {
			o.metrics.RecordEnvelopeOpenError()
			continue
		}
		frame, err := channelmux.DecodeFramePacket(plaintext)
		if err != nil {
			continue
		}
		o.metrics.RecordBytesReceived("frames", len(plaintext))
		if o.display != nil {
			o.display.RenderFrame(frame)
		}
	}
}
