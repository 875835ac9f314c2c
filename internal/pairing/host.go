package pairing

import (
	"context"
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/transcript"
	"github.com/zrc-project/zrc/internal/wire"
)

// InviteLookup is the subset of the invite store a host handler needs:
// find an invite by the device id it was issued for, and mark one
// consumed. Concrete implementation lives in internal/store.
type InviteLookup interface {
	FindByDeviceID(deviceID identity.ID32) (*Invite, bool)
	MarkConsumed(deviceID identity.ID32) error
}

// RecordStore is the subset of the pairing store a host handler needs.
// Concrete implementation lives in internal/store.
type RecordStore interface {
	Put(*Record) error
}

// Host runs the device-side half of the pairing state machine (spec.md
// §4.3). It owns the device's long-term identity and the invite/record
// stores.
type Host struct {
	Device   *identity.Keypair
	Invites  InviteLookup
	Records  RecordStore
	Approver Approver
}

// HandlePairRequest implements spec.md §4.3's host algorithm in full. The
// returned envelope (msg_type="pair_receipt_v1") is addressed to the
// operator and must be delivered by the caller's transport; on any Denied
// outcome, err is a *coreerr.CoreError the caller can seal into an error
// reply.
func (h *Host) HandlePairRequest(ctx context.Context, req *wire.PairRequestV1, now time.Time) (*envelope.Envelope, error) {
	var deviceID identity.ID32
	if len(req.DeviceID) != 32 {
		return nil, coreerr.BadRequest("device_id must be 32 bytes")
	}
	copy(deviceID[:], req.DeviceID)
	if deviceID != h.Device.ID() {
		return nil, coreerr.NotFound("device_id does not match this device")
	}

	inv, ok := h.Invites.FindByDeviceID(deviceID)
	if !ok {
		return nil, coreerr.ErrNoActiveInvite
	}
	if err := inv.CheckUsable(now); err != nil {
		switch err {
		case ErrInviteConsumed:
			return nil, coreerr.ErrNoActiveInvite
		default:
			return nil, coreerr.ErrInviteExpired
		}
	}

	if !VerifyPairProof(inv.InviteSecret, req.OperatorID, req.OperatorSignPub, req.OperatorKexPub, req.DeviceID, req.CreatedAt, req.PairProof) {
		return nil, coreerr.ErrPairProofInvalid
	}

	var sas string
	if req.RequestSAS {
		fields := transcript.PairRequestFieldsWithoutProof(req.OperatorID, req.OperatorSignPub, req.OperatorKexPub, req.DeviceID, req.CreatedAt, req.RequestSAS)
		sas = ComputeSAS(fields, req.OperatorSignPub, h.Device.SignPub[:], req.CreatedAt, uint64(inv.ExpiresAt.Unix()))
	}

	var operatorID identity.ID32
	copy(operatorID[:], req.OperatorID)
	decision, err := h.Approver.Decide(ctx, ApprovalRequest{
		OperatorID:      operatorID.String(),
		OperatorSignPub: req.OperatorSignPub,
		SAS:             sas,
		DeviceID:        deviceID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("pairing: approver: %w", err)
	}
	if !decision.Approved {
		return nil, coreerr.ErrUserDenied
	}

	pairingID, err := cryptoutil.Random16()
	if err != nil {
		return nil, fmt.Errorf("pairing: generate pairing id: %w", err)
	}

	var operatorSignPub [cryptoutil.SignPublicKeySize]byte
	copy(operatorSignPub[:], req.OperatorSignPub)
	var operatorKexPub [cryptoutil.KeySize]byte
	copy(operatorKexPub[:], req.OperatorKexPub)

	receipt := &wire.PairReceiptV1{
		PairingID:          pairingID[:],
		DeviceID:           deviceID[:],
		DeviceSignPub:      h.Device.SignPub[:],
		DeviceKexPub:       h.Device.KexPub[:],
		OperatorID:         req.OperatorID,
		OperatorSignPub:    req.OperatorSignPub,
		OperatorKexPub:     req.OperatorKexPub,
		Permissions:        decision.GrantedPermissions.Slice(),
		Unattended:         decision.UnattendedEnabled,
		RequireConsentEach: decision.RequireConsentEachTime,
		IssuedAt:           uint64(now.Unix()),
	}
	signingBytes := receipt.WithoutSignature().Encode()
	digest := cryptoutil.SHA256Sum(signingBytes)
	sig := h.Device.Sign(digest[:])
	receipt.Signature = sig[:]

	record := &Record{
		PairingID:              pairingID,
		DeviceID:               deviceID,
		DeviceSignPub:          h.Device.SignPub,
		DeviceKexPub:           h.Device.KexPub,
		OperatorID:             operatorID,
		OperatorSignPub:        operatorSignPub,
		OperatorKexPub:         operatorKexPub,
		GrantedPermissions:     decision.GrantedPermissions,
		UnattendedEnabled:      decision.UnattendedEnabled,
		RequireConsentEachTime: decision.RequireConsentEachTime,
		IssuedAt:               now,
		ReceiptSignature:       sig,
	}
	if err := h.Records.Put(record); err != nil {
		return nil, fmt.Errorf("pairing: persist record: %w", err)
	}
	if err := h.Invites.MarkConsumed(deviceID); err != nil {
		return nil, fmt.Errorf("pairing: consume invite: %w", err)
	}

	env, err := envelope.Seal(h.Device, operatorID, operatorKexPub, "pair_receipt_v1", receipt.Encode(), now)
	if err != nil {
		return nil, fmt.Errorf("pairing: seal receipt: %w", err)
	}
	return env, nil
}
