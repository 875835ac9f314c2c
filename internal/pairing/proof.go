package pairing

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/transcript"
)

// ComputePairProof computes the HMAC-SHA256 tag that authenticates a
// PairRequest against the invite secret it claims to redeem (spec.md §4.3
// step 2, P5).
func ComputePairProof(inviteSecret [32]byte, operatorID, operatorSignPub, operatorKexPub, deviceID []byte, createdAt uint64) [32]byte {
	input := transcript.PairProofInputV1(operatorID, operatorSignPub, operatorKexPub, deviceID, createdAt)
	mac := hmac.New(sha256.New, inviteSecret[:])
	mac.Write(input)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// VerifyPairProof reports whether proof authenticates the given request
// fields against inviteSecret, using a constant-time comparison.
func VerifyPairProof(inviteSecret [32]byte, operatorID, operatorSignPub, operatorKexPub, deviceID []byte, createdAt uint64, proof []byte) bool {
	expected := ComputePairProof(inviteSecret, operatorID, operatorSignPub, operatorKexPub, deviceID, createdAt)
	return cryptoutil.ConstantTimeEqual(expected[:], proof)
}
