// Package channelmux implements the per-stream protocol spec.md §4.7
// layers on top of a bare QUIC stream: the Control-channel plaintext
// ticket handshake that derives session AEAD keys, and the Frames-channel
// packet layout.
package channelmux

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/sessionaead"
	"github.com/zrc-project/zrc/internal/ticket"
	"github.com/zrc-project/zrc/internal/wire"
	"github.com/zrc-project/zrc/internal/zrctransport"
)

// Channel ids, frozen (spec.md §4.7).
const (
	ChannelControl   = byte(sessionaead.ChannelControl)
	ChannelFrames    = byte(sessionaead.ChannelFrames)
	ChannelClipboard = byte(sessionaead.ChannelClipboard)
	ChannelFiles     = byte(sessionaead.ChannelFiles)
)

// PixelFormat identifies the pixel layout of a Frames packet. Only BGRA8888
// is defined (spec.md §4.7).
type PixelFormat uint8

const PixelFormatBGRA8888 PixelFormat = 1

// FramePacket is one decoded Frames-channel payload.
type FramePacket struct {
	Width, Height, Stride uint32
	Format                PixelFormat
	Pixels                []byte
}

// EncodeFramePacket renders a frame packet using spec.md §4.7's exact byte
// layout: width_u32_be || height_u32_be || stride_u32_be || format_u8 ||
// pixel_len_u32_be || pixels.
func EncodeFramePacket(f FramePacket) []byte {
	buf := make([]byte, 4+4+4+1+4+len(f.Pixels))
	binary.BigEndian.PutUint32(buf[0:4], f.Width)
	binary.BigEndian.PutUint32(buf[4:8], f.Height)
	binary.BigEndian.PutUint32(buf[8:12], f.Stride)
	buf[12] = byte(f.Format)
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(f.Pixels)))
	copy(buf[17:], f.Pixels)
	return buf
}

// DecodeFramePacket parses a Frames-channel payload produced by
// EncodeFramePacket.
func DecodeFramePacket(b []byte) (FramePacket, error) {
	if len(b) < 17 {
		return FramePacket{}, coreerr.Decode("frame packet shorter than header")
	}
	f := FramePacket{
		Width:  binary.BigEndian.Uint32(b[0:4]),
		Height: binary.BigEndian.Uint32(b[4:8]),
		Stride: binary.BigEndian.Uint32(b[8:12]),
		Format: PixelFormat(b[12]),
	}
	pixelLen := binary.BigEndian.Uint32(b[13:17])
	if uint32(len(b)-17) != pixelLen {
		return FramePacket{}, coreerr.Decode("frame packet pixel_len does not match payload size")
	}
	f.Pixels = append([]byte(nil), b[17:]...)
	return f, nil
}

// SessionKeys bundles the four-channel AEAD bundles for both traffic
// directions, derived once from a verified ticket at handshake time.
type SessionKeys struct {
	DeviceToOperator *sessionaead.Bundle
	OperatorToDevice *sessionaead.Bundle
}

// DeriveSessionKeys computes both direction bundles from a ticket's
// session_binding and ticket_id (spec.md §4.6).
func DeriveSessionKeys(t *wire.SessionTicketV1) (*SessionKeys, error) {
	d2o, err := sessionaead.NewBundle(t.SessionBinding, t.TicketID, sessionaead.DirectionDeviceToOperator)
	if err != nil {
		return nil, fmt.Errorf("channelmux: derive device->operator keys: %w", err)
	}
	o2d, err := sessionaead.NewBundle(t.SessionBinding, t.TicketID, sessionaead.DirectionOperatorToDevice)
	if err != nil {
		return nil, fmt.Errorf("channelmux: derive operator->device keys: %w", err)
	}
	return &SessionKeys{DeviceToOperator: d2o, OperatorToDevice: o2d}, nil
}

// Zero wipes every derived key in both direction bundles.
func (k *SessionKeys) Zero() {
	k.DeviceToOperator.Zero()
	k.OperatorToDevice.Zero()
}

// DialControlHandshake implements the controller's half of spec.md §4.7's
// Control handshake: open the Control stream, send the hello (done by
// zrctransport.Conn.OpenChannelStream), then send the plaintext
// ControlTicketV1 as the first frame.
func DialControlHandshake(ctx context.Context, conn *zrctransport.Conn, sessionID, deviceID, operatorID, ticketBindingNonce []byte, t *wire.SessionTicketV1) (*zrctransport.ChannelStream, error) {
	stream, err := conn.OpenChannelStream(ctx, ChannelControl, false)
	if err != nil {
		return nil, fmt.Errorf("channelmux: open control stream: %w", err)
	}
	frame := &wire.ControlTicketV1{
		SessionID:          sessionID,
		DeviceID:           deviceID,
		OperatorID:         operatorID,
		TicketBindingNonce: ticketBindingNonce,
		Ticket:             t,
	}
	if err := stream.WriteFrame(frame.Encode()); err != nil {
		return nil, fmt.Errorf("channelmux: send control ticket: %w", err)
	}
	return stream, nil
}

// AcceptControlHandshake implements the device's half: accept the Control
// stream, read the plaintext ControlTicketV1, and re-verify the ticket
// against now and the packet's own fields (never trusting the ticket's
// self-reported binding — spec.md §4.7).
func AcceptControlHandshake(ctx context.Context, conn *zrctransport.Conn, now time.Time) (*zrctransport.ChannelStream, *wire.ControlTicketV1, error) {
	stream, channelID, err := conn.AcceptChannelStream(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("channelmux: accept control stream: %w", err)
	}
	if channelID != ChannelControl {
		stream.Close()
		return nil, nil, coreerr.BadRequest("first stream was not the control channel")
	}
	payload, err := stream.ReadFrame()
	if err != nil {
		return nil, nil, fmt.Errorf("channelmux: read control ticket frame: %w", err)
	}
	frame, err := wire.DecodeControlTicketV1(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("channelmux: decode control ticket: %w", err)
	}
	if frame.Ticket == nil {
		return nil, nil, coreerr.BadRequest("control ticket frame carries no ticket")
	}
	if err := ticket.Verify(frame.Ticket, frame.SessionID, frame.OperatorID, frame.DeviceID, frame.TicketBindingNonce, now); err != nil {
		return nil, nil, err
	}
	return stream, frame, nil
}
