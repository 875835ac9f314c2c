// Package sessionaead derives per-(direction,channel) AEAD keys from a
// verified session ticket and seals/opens frames under spec.md §4.6's
// nonce layout.
package sessionaead

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zrc-project/zrc/internal/cryptoutil"
)

// Channel identifies a logical stream kind (spec.md §4.7).
type Channel uint32

const (
	ChannelControl   Channel = 1
	ChannelFrames    Channel = 2
	ChannelClipboard Channel = 3
	ChannelFiles     Channel = 4
)

// Direction distinguishes device->operator from operator->device traffic
// so that each side of a channel gets an independent key even though both
// derive from the same ticket.
type Direction string

const (
	DirectionDeviceToOperator Direction = "d2o"
	DirectionOperatorToDevice Direction = "o2d"
)

const keyInfoPrefix = "zrc_sess_aead_key_v1"

// DeriveKey computes crypto = HKDF(ikm=sessionBinding, salt=ticketID,
// info="zrc_sess_aead_key_v1|<direction>|<channel as decimal>") — spec.md §4.6. Varying
// the info label per (direction, channel) is the only source of key
// separation; ikm and salt are shared across every derived key for a
// session.
func DeriveKey(sessionBinding, ticketID []byte, dir Direction, ch Channel) ([cryptoutil.KeySize]byte, error) {
	info := fmt.Sprintf("%s|%s|%d", keyInfoPrefix, dir, ch)
	return cryptoutil.HKDFDeriveKey32(sessionBinding, ticketID, info)
}

// Stream holds the sealing/opening state for one (direction, channel) pair:
// a fixed AEAD key and a monotonic send counter. It is safe for concurrent
// use.
type Stream struct {
	key      [cryptoutil.KeySize]byte
	streamID uint32
	counter  uint64
	mu       sync.Mutex
}

// NewStream builds a Stream for the given channel, deriving its key from
// the session ticket fields per spec.md §4.6.
func NewStream(sessionBinding, ticketID []byte, dir Direction, ch Channel) (*Stream, error) {
	key, err := DeriveKey(sessionBinding, ticketID, dir, ch)
	if err != nil {
		return nil, fmt.Errorf("sessionaead: derive key: %w", err)
	}
	return &Stream{key: key, streamID: uint32(ch)}, nil
}

func (s *Stream) buildNonce(counter uint64) [cryptoutil.NonceSize]byte {
	var nonce [cryptoutil.NonceSize]byte
	binary.LittleEndian.PutUint32(nonce[0:4], s.streamID)
	binary.LittleEndian.PutUint64(nonce[4:12], counter)
	return nonce
}

// channelAAD builds the AAD spec.md §4.6 requires: the channel id byte
// followed by the big-endian counter, so that a ciphertext replayed on a
// different channel or at a different counter fails authentication.
func channelAAD(ch Channel, counter uint64) []byte {
	aad := make([]byte, 1+8)
	aad[0] = byte(ch)
	binary.BigEndian.PutUint64(aad[1:], counter)
	return aad
}

// Seal encrypts plaintext under the stream's current send counter, which
// it then advances. It returns the ciphertext (with appended tag) and the
// counter value used, which the caller must transmit alongside it.
func (s *Stream) Seal(plaintext []byte) (ciphertext []byte, counter uint64, err error) {
	s.mu.Lock()
	counter = s.counter
	s.counter++
	s.mu.Unlock()

	nonce := s.buildNonce(counter)
	aad := channelAAD(Channel(s.streamID), counter)
	ciphertext, err = cryptoutil.AEADSeal(s.key, nonce, plaintext, aad)
	if err != nil {
		return nil, 0, fmt.Errorf("sessionaead: seal: %w", err)
	}
	return ciphertext, counter, nil
}

// Open decrypts a ciphertext received at the given counter. Callers are
// responsible for replay-window checks (package replay) before calling
// Open, since Open itself performs no counter bookkeeping.
func (s *Stream) Open(ciphertext []byte, counter uint64) ([]byte, error) {
	nonce := s.buildNonce(counter)
	aad := channelAAD(Channel(s.streamID), counter)
	plaintext, err := cryptoutil.AEADOpen(s.key, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("sessionaead: open: %w", err)
	}
	return plaintext, nil
}

// Zero wipes the stream's key material. Callers must not use the stream
// after calling Zero.
func (s *Stream) Zero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cryptoutil.Zero32(&s.key)
}

// Bundle holds the four per-channel streams for one traffic direction,
// derived together from a single ticket at session start.
type Bundle struct {
	Control   *Stream
	Frames    *Stream
	Clipboard *Stream
	Files     *Stream
}

// NewBundle derives all four channel streams for one direction.
func NewBundle(sessionBinding, ticketID []byte, dir Direction) (*Bundle, error) {
	control, err := NewStream(sessionBinding, ticketID, dir, ChannelControl)
	if err != nil {
		return nil, err
	}
	frames, err := NewStream(sessionBinding, ticketID, dir, ChannelFrames)
	if err != nil {
		return nil, err
	}
	clipboard, err := NewStream(sessionBinding, ticketID, dir, ChannelClipboard)
	if err != nil {
		return nil, err
	}
	files, err := NewStream(sessionBinding, ticketID, dir, ChannelFiles)
	if err != nil {
		return nil, err
	}
	return &Bundle{Control: control, Frames: frames, Clipboard: clipboard, Files: files}, nil
}

// Zero wipes every stream in the bundle.
func (b *Bundle) Zero() {
	b.Control.Zero()
	b.Frames.Zero()
	b.Clipboard.Zero()
	b.Files.Zero()
}

// EncodeSealedFrame renders a ciphertext and the counter it was sealed
// under into the single wire payload a ChannelStream carries: the counter
// (big-endian, so a peer can reject obviously-malformed frames without
// first attempting to decrypt) followed by the ciphertext and its
// appended AEAD tag.
func EncodeSealedFrame(ciphertext []byte, counter uint64) []byte {
	buf := make([]byte, 8+len(ciphertext))
	binary.BigEndian.PutUint64(buf[:8], counter)
	copy(buf[8:], ciphertext)
	return buf
}

// DecodeSealedFrame splits a wire payload produced by EncodeSealedFrame
// back into its counter and ciphertext, without opening it.
func DecodeSealedFrame(b []byte) (ciphertext []byte, counter uint64, err error) {
	if len(b) < 8 {
		return nil, 0, fmt.Errorf("sessionaead: sealed frame shorter than counter prefix")
	}
	counter = binary.BigEndian.Uint64(b[:8])
	return b[8:], counter, nil
}
