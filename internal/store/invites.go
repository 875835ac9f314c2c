// Package store provides the in-process, thread-safe invite and pairing
// record stores that back the pairing and session-init state machines.
package store

import (
	"sync"

	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/pairing"
)

// InviteStore is a thread-safe, in-memory keyed store of active invites,
// keyed by the device id that issued them. Implements
// pairing.InviteLookup.
type InviteStore struct {
	mu      sync.RWMutex
	invites map[identity.ID32]*pairing.Invite
}

// NewInviteStore creates an empty invite store.
func NewInviteStore() *InviteStore {
	return &InviteStore{invites: make(map[identity.ID32]*pairing.Invite)}
}

// Put installs (or replaces) the active invite for a device. A device has
// at most one active invite at a time.
func (s *InviteStore) Put(deviceID identity.ID32, inv *pairing.Invite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[deviceID] = inv
}

// FindByDeviceID returns the invite most recently installed for deviceID,
// if any.
func (s *InviteStore) FindByDeviceID(deviceID identity.ID32) (*pairing.Invite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invites[deviceID]
	return inv, ok
}

// MarkConsumed records that an invite has been used, preventing a second
// pairing from the same invite (spec.md P7).
func (s *InviteStore) MarkConsumed(deviceID identity.ID32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invites[deviceID]; ok {
		inv.Consumed = true
	}
	return nil
}

// Clear removes any active invite for a device, e.g. after it expires or
// is explicitly cancelled.
func (s *InviteStore) Clear(deviceID identity.ID32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invites, deviceID)
}
