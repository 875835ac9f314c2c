package device

import (
	"context"

	"github.com/zrc-project/zrc/internal/channelmux"
	"github.com/zrc-project/zrc/internal/controlmsg"
)

// FrameSource is the platform capture collaborator (spec.md §6): it
// produces a stream of frames for the duration of ctx. Implementations
// live outside this module (platform-specific screen capture); this
// package only defines the contract a Device needs to drive the Frames
// channel.
type FrameSource interface {
	// Frames returns a channel of captured frames. The channel is closed
	// when capture ends, whether because ctx was cancelled or capture
	// itself failed.
	Frames(ctx context.Context) <-chan channelmux.FramePacket
}

// InputSink is the platform input/clipboard collaborator (spec.md §6): it
// applies incoming input events and exposes the local clipboard to a
// connected operator. Implementations live outside this module
// (platform-specific input injection); this package only defines the
// contract a Device needs to drive the Control channel's input and
// clipboard messages.
type InputSink interface {
	// ApplyInputEvent injects one input event (mouse, button, key, or
	// text) into the local input stack.
	ApplyInputEvent(ev controlmsg.InputEventV1)

	// SetClipboard replaces the local clipboard's content.
	SetClipboard(mime string, data []byte)

	// GetClipboard returns the local clipboard's current content.
	GetClipboard() (mime string, data []byte)
}
