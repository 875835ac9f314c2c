package pairing

import (
	"time"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

// Record is a persistent per-(device, operator) tuple pairing (spec.md §3
// "Pairing record"). Mutated only by explicit revocation.
type Record struct {
	PairingID [16]byte

	DeviceID      identity.ID32
	DeviceSignPub [cryptoutil.SignPublicKeySize]byte
	DeviceKexPub  [cryptoutil.KeySize]byte

	OperatorID      identity.ID32
	OperatorSignPub [cryptoutil.SignPublicKeySize]byte
	OperatorKexPub  [cryptoutil.KeySize]byte

	GrantedPermissions     wire.PermissionSet
	UnattendedEnabled      bool
	RequireConsentEachTime bool
	IssuedAt               time.Time

	// ReceiptSignature is the device's signature over the receipt that
	// produced this record, retained for audit/dispute purposes.
	ReceiptSignature [cryptoutil.SignatureSize]byte
}

// Key identifies a record by its (device, operator) tuple, the store's
// primary index.
type Key struct {
	DeviceID   identity.ID32
	OperatorID identity.ID32
}

// Key returns this record's (device, operator) store key.
func (r *Record) Key() Key {
	return Key{DeviceID: r.DeviceID, OperatorID: r.OperatorID}
}
