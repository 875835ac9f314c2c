package zrctransport

import (
	"bytes"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the hard maximum length-prefixed frame size spec.md §4.7
// sets for every channel: "a hard maximum of 16 MiB".
const MaxFrameSize = 16 * 1024 * 1024

// ErrFrameTooLarge is returned when a peer announces a frame length over
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("zrctransport: frame exceeds 16MiB maximum")

type reader interface{ Read([]byte) (int, error) }
type writer interface{ Write([]byte) (int, error) }

// ChannelStream is one QUIC stream dedicated to a single logical channel
// (Control, Frames, Clipboard, or Files), framed with a u32 big-endian
// length prefix per message.
type ChannelStream struct {
	stream    io.Closer
	reader    reader
	writer    writer
	channelID byte
}

// ChannelID returns the channel id this stream announced in its hello.
func (cs *ChannelStream) ChannelID() byte { return cs.channelID }

// WriteFrame writes a length-prefixed frame: u32 big-endian length then
// payload (spec.md §4.7).
func (cs *ChannelStream) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if cs.writer == nil {
		return errors.New("zrctransport: stream is not writable")
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := cs.writer.Write(header); err != nil {
		return fmt.Errorf("zrctransport: write frame header: %w", err)
	}
	if _, err := cs.writer.Write(payload); err != nil {
		return fmt.Errorf("zrctransport: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, rejecting anything over
// MaxFrameSize before allocating a buffer for it.
func (cs *ChannelStream) ReadFrame() ([]byte, error) {
	if cs.reader == nil {
		return nil, errors.New("zrctransport: stream is not readable")
	}
	header := make([]byte, 4)
	if _, err := readFull(cs.reader, header); err != nil {
		return nil, fmt.Errorf("zrctransport: read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := readFull(cs.reader, payload); err != nil {
		return nil, fmt.Errorf("zrctransport: read frame payload: %w", err)
	}
	return payload, nil
}

// CloseWrite half-closes the stream's write side where supported.
func (cs *ChannelStream) CloseWrite() error {
	if closer, ok := cs.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Close fully closes the underlying stream.
func (cs *ChannelStream) Close() error {
	if cs.stream != nil {
		return cs.stream.Close()
	}
	if closer, ok := cs.reader.(io.Closer); ok {
		return closer.Close()
	}
	if closer, ok := cs.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// VerifyPinnedCert implements the transport-layer half of spec.md §4.7's
// pinning: the peer's leaf certificate must be byte-identical to the DER
// the controller already obtained from a signed+sealed session-init
// response. No certificate authority, hostname, or validity-period check
// is performed — pinning by exact DER subsumes all of them.
func VerifyPinnedCert(rawCerts [][]byte, pinnedCertDER []byte) error {
	if len(rawCerts) == 0 {
		return errors.New("zrctransport: peer presented no certificate")
	}
	leaf := rawCerts[0]
	if !bytes.Equal(leaf, pinnedCertDER) {
		return errors.New("zrctransport: peer certificate does not match pinned DER")
	}
	if _, err := x509.ParseCertificate(leaf); err != nil {
		return fmt.Errorf("zrctransport: parse peer certificate: %w", err)
	}
	return nil
}
