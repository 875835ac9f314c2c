package pairing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
)

// inviteCodePrefix tags every encoded invite so a scanner (QR reader,
// paste buffer) can distinguish it from other strings at a glance.
const inviteCodePrefix = "zrc1:"

// inviteCodeWire is the JSON form of an invite's out-of-band fields
// (spec.md §3 "Invite"). It never crosses the protocol itself: operators
// obtain it out-of-band (displayed as text or a QR code) and decode it
// locally before building a PairRequest.
type inviteCodeWire struct {
	DeviceID       string `json:"d"`
	DeviceSignPub  string `json:"sp"`
	DeviceKexPub   string `json:"kp"`
	InviteSecret   string `json:"s"`
	ExpiresAt      int64  `json:"e"`
	RequestSAS     bool   `json:"sas"`
	RendezvousAddr string `json:"r"`
}

// EncodeInviteCode renders an invite plus the rendezvous address an
// operator should dial, as a single opaque string suitable for display or
// encoding into a QR code.
func EncodeInviteCode(inv *Invite, rendezvousAddr string, requestSAS bool) (string, error) {
	wire := inviteCodeWire{
		DeviceID:       inv.DeviceID.String(),
		DeviceSignPub:  base64.RawURLEncoding.EncodeToString(inv.DeviceSignPub[:]),
		DeviceKexPub:   base64.RawURLEncoding.EncodeToString(inv.DeviceKexPub[:]),
		InviteSecret:   base64.RawURLEncoding.EncodeToString(inv.InviteSecret[:]),
		ExpiresAt:      inv.ExpiresAt.Unix(),
		RequestSAS:     requestSAS,
		RendezvousAddr: rendezvousAddr,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("pairing: encode invite code: %w", err)
	}
	return inviteCodePrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodedInviteCode is the operator-side view of a scanned invite: enough
// to build a PairRequest and dial the rendezvous, without the device's
// permission-policy hints (those are decided by the approver, not
// advertised to the operator before pairing).
type DecodedInviteCode struct {
	DeviceID       identity.ID32
	DeviceSignPub  [cryptoutil.SignPublicKeySize]byte
	DeviceKexPub   [cryptoutil.KeySize]byte
	InviteSecret   [32]byte
	ExpiresAt      time.Time
	RequestSAS     bool
	RendezvousAddr string
}

// DecodeInviteCode parses a string produced by EncodeInviteCode.
func DecodeInviteCode(code string) (*DecodedInviteCode, error) {
	if len(code) <= len(inviteCodePrefix) || code[:len(inviteCodePrefix)] != inviteCodePrefix {
		return nil, fmt.Errorf("pairing: decode invite code: missing %q prefix", inviteCodePrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(code[len(inviteCodePrefix):])
	if err != nil {
		return nil, fmt.Errorf("pairing: decode invite code: %w", err)
	}
	var w inviteCodeWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("pairing: decode invite code: %w", err)
	}

	deviceID, err := identity.ParseID32(w.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("pairing: decode invite code: device id: %w", err)
	}
	signPub, err := decodeFixed32URL(w.DeviceSignPub, cryptoutil.SignPublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("pairing: decode invite code: device sign pub: %w", err)
	}
	kexPub, err := decodeFixed32URL(w.DeviceKexPub, cryptoutil.KeySize)
	if err != nil {
		return nil, fmt.Errorf("pairing: decode invite code: device kex pub: %w", err)
	}
	secret, err := decodeFixed32URL(w.InviteSecret, 32)
	if err != nil {
		return nil, fmt.Errorf("pairing: decode invite code: invite secret: %w", err)
	}

	out := &DecodedInviteCode{
		DeviceID:       deviceID,
		ExpiresAt:      time.Unix(w.ExpiresAt, 0),
		RequestSAS:     w.RequestSAS,
		RendezvousAddr: w.RendezvousAddr,
	}
	copy(out.DeviceSignPub[:], signPub)
	copy(out.DeviceKexPub[:], kexPub)
	copy(out.InviteSecret[:], secret)
	return out, nil
}

// AsInvite projects a decoded invite code back into the Invite shape
// BuildPairRequest expects, for an operator who never saw the device's
// InviteStore.
func (d *DecodedInviteCode) AsInvite() *Invite {
	return &Invite{
		DeviceID:      d.DeviceID,
		DeviceSignPub: d.DeviceSignPub,
		DeviceKexPub:  d.DeviceKexPub,
		InviteSecret:  d.InviteSecret,
		ExpiresAt:     d.ExpiresAt,
	}
}

func decodeFixed32URL(s string, want int) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != want {
		return nil, fmt.Errorf("want %d bytes, got %d", want, len(b))
	}
	return b, nil
}
