package pairing

import (
	"encoding/binary"
	"fmt"

	"github.com/zrc-project/zrc/internal/cryptoutil"
	"github.com/zrc-project/zrc/internal/transcript"
)

// ComputeSAS computes the 6-digit Short Authentication String shown to both
// users for out-of-band MITM detection (spec.md §4.3 step 3, P6).
func ComputeSAS(requestFieldsWithoutProof, operatorSignPub, deviceSignPub []byte, createdAt, inviteExpiresAt uint64) string {
	t := transcript.PairSASV1(requestFieldsWithoutProof, operatorSignPub, deviceSignPub, createdAt, inviteExpiresAt)
	digest := cryptoutil.SHA256Sum(t)
	n := binary.BigEndian.Uint32(digest[0:4]) % 1_000_000
	return fmt.Sprintf("%06d", n)
}
