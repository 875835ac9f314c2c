package device

import (
	"context"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/audit"
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

// acceptSessionsLoop accepts QUIC connections on the bootstrap listener
// and serves each on its own goroutine until Stop closes the listener.
func (d *Device) acceptSessionsLoop() {
	defer d.wg.Done()
	defer recovery.RecoverWithLog(d.logger, "device.acceptSessionsLoop")
	for {
		conn, err := d.quicListener.Accept(context.Background())
		if err != nil {
			select {
			case <-d.stopCh:
				return
			default:
				d.logger.Error("accept session failed", logging.KeyError, err)
				return
			}
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer recovery.RecoverWithLog(d.logger, "device.serveSession")
			d.serveSession(conn)
		}()
	}
}

// serveSession runs spec.md §4.7's Control-handshake then Control/Frames
// serve loop for one accepted QUIC connection.
func (d *Device) serveSession(conn *zrctransport.Conn) {
	defer conn.Close()
	now := time.Now()

	stream, frame, err := channelmux.AcceptControlHandshake(context.Background(), conn, now)
	if err != nil {
		d.logger.Warn("control handshake failed", logging.KeyComponent, "device", logging.KeyError, err)
		return
	}
	defer stream.Close()

	var operatorID identity.ID32
	copy(operatorID[:], frame.OperatorID)
	record, ok := d.pairings.Get(pairing.Key{DeviceID: d.keys.ID(), OperatorID: operatorID})
	if !ok {
		d.logger.Warn("control handshake from revoked/unknown pairing",
			logging.KeyOperatorID, operatorID.ShortString())
		return
	}

	keys, err := channelmux.DeriveSessionKeys(frame.Ticket)
	if err != nil {
		d.logger.Error("derive session keys failed", logging.KeyError, err)
		return
	}
	defer keys.Zero()

	sessionID := fmt.Sprintf("%x", frame.SessionID)
	ctx, cancel := context.WithCancel(context.Background())
	d.trackSession(sessionID, operatorID, cancel)
	defer d.untrackSession(sessionID)

	d.metrics.RecordChannelStreamOpen()
	defer d.metrics.RecordChannelStreamClose()

	granted := record.GrantedPermissions
	controlReplay := replay.NewFilter(replay.DefaultWindowBits)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer recovery.RecoverWithLog(d.logger, "device.serveFrames")
		d.serveFrames(ctx, conn, keys.DeviceToOperator.Frames)
	}()

	d.serveControl(ctx, stream, keys.OperatorToDevice.Control, keys.DeviceToOperator.Control, controlReplay, granted, operatorID)
}

func (d *Device) trackSession(sessionID string, operatorID identity.ID32, cancel context.CancelFunc) {
	d.sessionsMu.Lock()
	defer d.sessionsMu.Unlock()
	d.sessions[sessionID] = sessionRecord{sessionID: sessionID, operatorID: operatorID, startedAt: time.Now(), cancel: cancel}
}

func (d *Device) untrackSession(sessionID string) {
	d.sessionsMu.Lock()
	defer d.sessionsMu.Unlock()
	delete(d.sessions, sessionID)
}

// serveControl reads sealed Control-channel frames from the operator,
// enforces replay and permission checks, and applies input/clipboard
// messages through the Input sink (spec.md §6). Ping is answered inline
// with Pong.
func (d *Device) serveControl(ctx context.Context, stream *zrctransport.ChannelStream, recv, send *sessionaead.Stream, filter *replay.Filter, granted wire.PermissionSet, operatorID identity.ID32) {
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
			d.metrics.RecordReplayRejection()
			d.audit.Record(audit.OutcomeReplayRejected, d.keys.ID(), operatorID, err.Error(), time.Now())
			continue
		}
		plaintext, err := recv.Open(ciphertext, counter)
		if err != nil {
			d.metrics.RecordEnvelopeOpenError()
			continue
		}
		msg, err := controlmsg.Decode(plaintext)
		if err != nil {
			continue
		}
		if err := controlmsg.CheckPermitted(msg, granted); err != nil {
			d.metrics.RecordControlMessageDenied(fmt.Sprintf("%d", msg.Kind))
			continue
		}
		d.metrics.RecordControlMessageSent(fmt.Sprintf("%d", msg.Kind))
		d.handleControlMsg(stream, send, msg)
	}
}

func (d *Device) handleControlMsg(stream *zrctransport.ChannelStream, send *sessionaead.Stream, msg controlmsg.ControlMsgV1) {
	switch msg.Kind {
	case controlmsg.KindPing:
		d.replyControl(stream, send, controlmsg.ControlMsgV1{Kind: controlmsg.KindPong})
	case controlmsg.KindInputEvent:
		if d.input != nil {
			d.input.ApplyInputEvent(msg.Input)
		}
	case controlmsg.KindClipboardSet:
		if d.input != nil {
			d.input.SetClipboard(msg.ClipboardMIME, msg.ClipboardData)
		}
	case controlmsg.KindClipboardGet:
		if d.input == nil {
			return
		}
		mime, data := d.input.GetClipboard()
		d.replyControl(stream, send, controlmsg.ControlMsgV1{Kind: controlmsg.KindClipboardData, ClipboardMIME: mime, ClipboardData: data})
	}
}

func (d *Device) replyControl(stream *zrctransport.ChannelStream, send *sessionaead.Stream, msg controlmsg.ControlMsgV1) {
	ciphertext, counter, err := send.Seal(msg.Encode())
	if err != nil {
		return
	}
	stream.WriteFrame(sessionaead.EncodeSealedFrame(ciphertext, counter))
}

// serveFrames pulls frames from the capture collaborator (spec.md §6) and
// pushes them, sealed, over a unidirectional Frames stream. Without a
// FrameSource installed this loop idles until ctx is cancelled.
func (d *Device) serveFrames(ctx context.Context, conn *zrctransport.Conn, send *sessionaead.Stream) {
	if d.capture == nil {
		<-ctx.Done()
		return
	}
	stream, err := conn.OpenChannelStream(ctx, channelmux.ChannelFrames, true)
	if err != nil {
		d.logger.Error("open frames stream failed", logging.KeyError, err)
		return
	}
	defer stream.Close()

	frames := d.capture.Frames(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			payload := channelmux.EncodeFramePacket(f)
			ciphertext, counter, err := send.Seal(payload)
			if err != nil {
				continue
			}
			if err := stream.WriteFrame(sessionaead.EncodeSealedFrame(ciphertext, counter)); err != nil {
				return
			}
			d.metrics.RecordFrameEncoded()
			d.metrics.RecordBytesSent("frames", len(payload))
		}
	}
}
