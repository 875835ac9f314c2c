// Package ticket implements session-ticket issuance and verification
// (spec.md §4.4): a short-lived, device-signed capability binding a
// session to a specific (session_id, operator, device, binding nonce)
// tuple.
package ticket

import (
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/transcript"
	"github.com/zrc-project/zrc/internal/wire"
)

// DefaultTTL is the MVP default ticket lifetime (spec.md §3, §9).
const DefaultTTL = 5 * time.Minute

// MaxTTL is the hard ceiling no configuration may exceed (spec.md §9's
// resolution of the "exact upper bound" open question).
const MaxTTL = 8 * time.Hour

// ErrTTLTooLong is returned when a requested ticket lifetime exceeds MaxTTL.
var ErrTTLTooLong = coreerr.BadRequest("requested ticket ttl exceeds the 8h hard cap")

// ComputeBinding computes session_binding = SHA256(transcript(...)),
// spec.md §4.4 / §4.1's zrc_ticket_bind_v1 kind.
func ComputeBinding(sessionID, operatorID, deviceID, ticketBindingNonce []byte) [32]byte {
	t := transcript.TicketBindV1(sessionID, operatorID, deviceID, ticketBindingNonce)
	return cryptoutil.SHA256Sum(t)
}

// Issue produces a freshly signed session ticket bound to the given
// session tuple, implementing spec.md §4.4's signing step and §4.5 step 6's
// issuance. ttl must not exceed MaxTTL.
func Issue(device *identity.Keypair, operatorID identity.ID32, operatorSignPub [cryptoutil.SignPublicKeySize]byte, sessionID, ticketBindingNonce []byte, perms []wire.Permission, allowedTransports []string, requireConsent bool, ttl time.Duration, now time.Time) (*wire.SessionTicketV1, error) {
	if ttl > MaxTTL {
		return nil, ErrTTLTooLong
	}
	ticketID, err := cryptoutil.Random16()
	if err != nil {
		return nil, err
	}
	deviceID := device.ID()
	binding := ComputeBinding(sessionID, operatorID[:], deviceID[:], ticketBindingNonce)

	t := &wire.SessionTicketV1{
		TicketID:          ticketID[:],
		DeviceID:          deviceID[:],
		DeviceSignPub:     device.SignPub[:],
		OperatorID:        operatorID[:],
		OperatorSignPub:   operatorSignPub[:],
		Permissions:       perms,
		IssuedAt:          uint64(now.Unix()),
		ExpiresAt:         uint64(now.Add(ttl).Unix()),
		AllowedTransports: allowedTransports,
		RequireConsent:    requireConsent,
		SessionBinding:    binding[:],
	}
	signingBytes := t.WithoutSignature().Encode()
	digest := cryptoutil.SHA256Sum(signingBytes)
	sig := device.Sign(digest[:])
	t.Signature = sig[:]
	return t, nil
}

// Verify performs the four-step verification spec.md §4.4 requires,
// against the session tuple the verifier itself expects (the caller
// supplies sessionID/operatorID/deviceID/nonce rather than trusting the
// ticket's self-reported binding).
func Verify(t *wire.SessionTicketV1, sessionID, operatorID, deviceID, ticketBindingNonce []byte, now time.Time) error {
	if len(t.DeviceSignPub) != cryptoutil.SignPublicKeySize {
		return coreerr.BadRequest("device_sign_pub has wrong length")
	}
	if len(t.Signature) != cryptoutil.SignatureSize {
		return coreerr.BadRequest("signature has wrong length")
	}
	if len(t.DeviceID) != 32 {
		return coreerr.BadRequest("device_id has wrong length")
	}

	var signPub [cryptoutil.SignPublicKeySize]byte
	copy(signPub[:], t.DeviceSignPub)
	var claimedDeviceID identity.ID32
	copy(claimedDeviceID[:], t.DeviceID)
	if err := identity.VerifyID32(claimedDeviceID, signPub); err != nil {
		return coreerr.Crypto("sign_pub does not match ticket device_id")
	}

	if uint64(now.Unix()) >= t.ExpiresAt {
		return coreerr.ErrTicketExpired
	}

	expected := ComputeBinding(sessionID, operatorID, deviceID, ticketBindingNonce)
	if !cryptoutil.ConstantTimeEqual(expected[:], t.SessionBinding) {
		return coreerr.Denied("ticket session_binding mismatch")
	}

	digest := cryptoutil.SHA256Sum(t.WithoutSignature().Encode())
	var sig [cryptoutil.SignatureSize]byte
	copy(sig[:], t.Signature)
	if !cryptoutil.VerifySignature(signPub, digest[:], sig) {
		return coreerr.Crypto("ticket signature invalid")
	}

	return nil
}
