package store

import (
	"sync"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/pairing"
)

// PairingStore is a thread-safe, in-memory store of pairing records,
// indexed by (device_id, operator_id) and also by pairing_id (spec.md §6:
// "pairing records keyed by (device_id, operator_id), indexed also by
// pairing_id"). It implements both pairing.RecordStore and
// sessioninit.RecordLookup.
type PairingStore struct {
	mu    sync.RWMutex
	byKey map[pairing.Key]*pairing.Record
	byID  map[[16]byte]*pairing.Record
}

// NewPairingStore creates an empty pairing store.
func NewPairingStore() *PairingStore {
	return &PairingStore{
		byKey: make(map[pairing.Key]*pairing.Record),
		byID:  make(map[[16]byte]*pairing.Record),
	}
}

// Put installs or replaces a pairing record, indexing it under both keys.
func (s *PairingStore) Put(r *pairing.Record) error {
	if r == nil {
		return coreerr.BadRequest("nil pairing record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[r.Key()] = r
	s.byID[r.PairingID] = r
	return nil
}

// Get implements sessioninit.RecordLookup.
func (s *PairingStore) Get(key pairing.Key) (*pairing.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byKey[key]
	return r, ok
}

// GetByPairingID looks a record up by its stable pairing id, independent
// of which device/operator pair currently holds it.
func (s *PairingStore) GetByPairingID(pairingID [16]byte) (*pairing.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[pairingID]
	return r, ok
}

// List returns a snapshot of every pairing record currently stored.
func (s *PairingStore) List() []*pairing.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pairing.Record, 0, len(s.byKey))
	for _, r := range s.byKey {
		out = append(out, r)
	}
	return out
}

// Revoke removes a pairing record from both indexes. The supplemented
// revocation operation: once removed, HandleSessionInitRequest will see
// ErrNotPaired for this (device, operator) pair, and any outstanding
// session ticket still verifies cryptographically but the device-side
// session-init path is closed for future sessions.
func (s *PairingStore) Revoke(key pairing.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[key]
	if !ok {
		return coreerr.NotFound("no pairing record for that device/operator pair")
	}
	delete(s.byKey, key)
	delete(s.byID, r.PairingID)
	return nil
}
