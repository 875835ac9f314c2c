// Package replay implements the sliding-window replay filter spec.md §4.6
// requires for every session-AEAD stream: a bitmap of recently seen
// counters that rejects both duplicates and counters too far behind the
// highest seen so far.
package replay

import (
	"sync"

	"github.com/zrc-project/zrc/internal/coreerr"
)

// DefaultWindowBits is the filter's default window size (spec.md §4.6).
const DefaultWindowBits = 1024

// ErrCounterTooOld is returned when a counter falls more than window_size
// behind the highest counter accepted so far.
var ErrCounterTooOld = coreerr.Replay("counter too old, outside replay window")

// ErrDuplicatePacket is returned when a counter inside the window has
// already been accepted.
var ErrDuplicatePacket = coreerr.Replay("duplicate packet")

// Filter is a sliding-window replay filter for one stream's receive
// counter. The zero value is not usable; construct with NewFilter. Safe
// for concurrent use.
type Filter struct {
	mu          sync.Mutex
	windowBits  uint64
	highestSeen uint64
	seenAny     bool
	bits        []uint64 // bitmap, word i holds bits [64i, 64i+63]
}

// NewFilter constructs a replay filter with the given window size in
// bits. A windowBits of 0 uses DefaultWindowBits.
func NewFilter(windowBits uint64) *Filter {
	if windowBits == 0 {
		windowBits = DefaultWindowBits
	}
	words := (windowBits + 63) / 64
	return &Filter{windowBits: windowBits, bits: make([]uint64, words)}
}

func (f *Filter) bitIndex(counter uint64) uint64 {
	return counter % f.windowBits
}

func (f *Filter) testBit(counter uint64) bool {
	idx := f.bitIndex(counter)
	return f.bits[idx/64]&(1<<(idx%64)) != 0
}

func (f *Filter) setBit(counter uint64) {
	idx := f.bitIndex(counter)
	f.bits[idx/64] |= 1 << (idx % 64)
}

func (f *Filter) clearBit(counter uint64) {
	idx := f.bitIndex(counter)
	f.bits[idx/64] &^= 1 << (idx % 64)
}

// Accept implements spec.md §4.6's exact algorithm:
//
//	c > highest: shift window, advance highest, mark bit for c. Accept.
//	highest - c >= window_size: reject CounterTooOld.
//	otherwise: consult the bit; set → reject DuplicatePacket; else set and accept.
func (f *Filter) Accept(counter uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.seenAny {
		f.seenAny = true
		f.highestSeen = counter
		f.setBit(counter)
		return nil
	}

	if counter > f.highestSeen {
		advance := counter - f.highestSeen
		if advance > f.windowBits {
			advance = f.windowBits
		}
		// Clear the bits for counters that are about to fall out of the
		// window so stale "seen" marks don't linger when their slot is
		// reused by a later counter.
		for i := uint64(1); i <= advance; i++ {
			f.clearBit(f.highestSeen + i)
		}
		f.highestSeen = counter
		f.setBit(counter)
		return nil
	}

	if f.highestSeen-counter >= f.windowBits {
		return ErrCounterTooOld
	}

	if f.testBit(counter) {
		return ErrDuplicatePacket
	}
	f.setBit(counter)
	return nil
}

// HighestSeen returns the highest counter accepted so far.
func (f *Filter) HighestSeen() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.highestSeen
}
