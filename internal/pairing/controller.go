package pairing

import (
	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

// VerifyReceipt implements the controller's half of spec.md §4.3: checks
// the device signature (with the signature field cleared), verifies
// device_id == SHA256(device_sign_pub), confirms the receipt's operator_id
// matches this controller's own identity, then returns the record it
// pins — both peers' sign-pub and kex-pub, and the granted permission set.
func VerifyReceipt(receipt *wire.PairReceiptV1, self *identity.Keypair) (*Record, error) {
	if len(receipt.DeviceSignPub) != cryptoutil.SignPublicKeySize {
		return nil, coreerr.BadRequest("device_sign_pub has wrong length")
	}
	if len(receipt.Signature) != cryptoutil.SignatureSize {
		return nil, coreerr.BadRequest("signature has wrong length")
	}

	var deviceSignPub [cryptoutil.SignPublicKeySize]byte
	copy(deviceSignPub[:], receipt.DeviceSignPub)

	signingBytes := receipt.WithoutSignature().Encode()
	digest := cryptoutil.SHA256Sum(signingBytes)
	var sig [cryptoutil.SignatureSize]byte
	copy(sig[:], receipt.Signature)
	if !cryptoutil.VerifySignature(deviceSignPub, digest[:], sig) {
		return nil, coreerr.Crypto("receipt signature invalid")
	}

	var claimedDeviceID identity.ID32
	if len(receipt.DeviceID) != 32 {
		return nil, coreerr.BadRequest("device_id has wrong length")
	}
	copy(claimedDeviceID[:], receipt.DeviceID)
	if err := identity.VerifyID32(claimedDeviceID, deviceSignPub); err != nil {
		return nil, coreerr.Crypto("receipt device_id does not match device_sign_pub")
	}

	var claimedOperatorID identity.ID32
	if len(receipt.OperatorID) != 32 {
		return nil, coreerr.BadRequest("operator_id has wrong length")
	}
	copy(claimedOperatorID[:], receipt.OperatorID)
	if claimedOperatorID != self.ID() {
		return nil, coreerr.Denied("receipt addressed to a different operator")
	}

	var deviceKexPub [cryptoutil.KeySize]byte
	if len(receipt.DeviceKexPub) != cryptoutil.KeySize {
		return nil, coreerr.BadRequest("device_kex_pub has wrong length")
	}
	copy(deviceKexPub[:], receipt.DeviceKexPub)

	if len(receipt.PairingID) != 16 {
		return nil, coreerr.BadRequest("pairing_id has wrong length")
	}

	perms := wire.NewPermissionSet(receipt.Permissions...)

	var pairingID [16]byte
	copy(pairingID[:], receipt.PairingID)

	record := &Record{
		PairingID:              pairingID,
		DeviceID:               claimedDeviceID,
		DeviceSignPub:          deviceSignPub,
		DeviceKexPub:           deviceKexPub,
		OperatorID:             claimedOperatorID,
		OperatorSignPub:        self.SignPub,
		OperatorKexPub:         self.KexPub,
		GrantedPermissions:     perms,
		UnattendedEnabled:      receipt.Unattended,
		RequireConsentEachTime: receipt.RequireConsentEach,
		ReceiptSignature:       sig,
	}
	return record, nil
}
