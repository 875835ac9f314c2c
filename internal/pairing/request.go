package pairing

import (
	"fmt"
	"time"

	"github.com/zrc-project/zrc/internal/envelope"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/wire"
)

// BuildPairRequest constructs and seals a PairRequestV1 envelope on behalf
// of an operator redeeming an invite, implementing the controller's half
// of spec.md §4.3 (computing pair_proof and sealing it to the device).
func BuildPairRequest(operator *identity.Keypair, inv *Invite, requestSAS bool, now time.Time) (*envelope.Envelope, error) {
	operatorID := operator.ID()
	createdAt := uint64(now.Unix())

	proof := ComputePairProof(inv.InviteSecret, operatorID[:], operator.SignPub[:], operator.KexPub[:], inv.DeviceID[:], createdAt)

	req := &wire.PairRequestV1{
		OperatorID:      operatorID[:],
		OperatorSignPub: operator.SignPub[:],
		OperatorKexPub:  operator.KexPub[:],
		DeviceID:        inv.DeviceID[:],
		CreatedAt:       createdAt,
		PairProof:       proof[:],
		RequestSAS:      requestSAS,
	}

	env, err := envelope.Seal(operator, inv.DeviceID, inv.DeviceKexPub, "pair_request_v1", req.Encode(), now)
	if err != nil {
		return nil, fmt.Errorf("pairing: seal pair request: %w", err)
	}
	return env, nil
}
