// Package pairing implements the pairing state machine that turns an
// out-of-band invite into two mutually-pinned identities plus a permission
// set (spec.md §4.3).
package pairing

import (
	"errors"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

// Invite is an out-of-band blob produced by a device, enabling exactly one
// successful pairing (spec.md §3 "Invite").
type Invite struct {
	DeviceID      identity.ID32
	DeviceSignPub [cryptoutil.SignPublicKeySize]byte
	DeviceKexPub  [cryptoutil.KeySize]byte
	InviteSecret  [32]byte
	ExpiresAt     time.Time

	// Policy hint, applied by the approver if it chooses to honor it.
	DefaultPermissions wire.PermissionSet
	RequireConsent     bool

	// Consumed is set once a PairRequest against this invite has been
	// approved; a second request then fails closed (spec.md P7).
	Consumed bool
}

// NewInvite creates a fresh single-use invite for the given device
// identity, valid for ttl from now.
func NewInvite(device *identity.Keypair, ttl time.Duration, now time.Time, defaults wire.PermissionSet, requireConsent bool) (*Invite, error) {
	secret, err := cryptoutil.Random32()
	if err != nil {
		return nil, fmt.Errorf("pairing: new invite: %w", err)
	}
	return &Invite{
		DeviceID:           device.ID(),
		DeviceSignPub:      device.SignPub,
		DeviceKexPub:       device.KexPub,
		InviteSecret:       secret,
		ExpiresAt:          now.Add(ttl),
		DefaultPermissions: defaults,
		RequireConsent:     requireConsent,
	}, nil
}

// ErrInviteExpired is returned when an invite's expiry has passed.
var ErrInviteExpired = errors.New("pairing: invite expired")

// ErrInviteConsumed is returned when an invite has already been used.
var ErrInviteConsumed = errors.New("pairing: invite already consumed")

// CheckUsable validates the invite is still valid for use at `now`,
// implementing spec.md §4.3 step 1 (absent/expired invite checks folded
// into the store lookup; this validates the loaded invite itself).
func (inv *Invite) CheckUsable(now time.Time) error {
	if inv.Consumed {
		return ErrInviteConsumed
	}
	if !now.Before(inv.ExpiresAt) {
		return ErrInviteExpired
	}
	return nil
}
