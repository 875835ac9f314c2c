package pairing

import (
	"context"

	"github.com/zrc-project/zrc/internal/wire"
)

// ApprovalRequest is what a PairingApprover is shown: the incoming pair
// request plus the SAS if one was requested (spec.md §4.3 step 4, §6).
type ApprovalRequest struct {
	OperatorID      string // hex id32, for display
	OperatorSignPub []byte
	SAS             string // empty if request_sas was false
	DeviceID        string
}

// ApprovalDecision is the external PairingApprover's response.
type ApprovalDecision struct {
	Approved               bool
	GrantedPermissions     wire.PermissionSet
	UnattendedEnabled      bool
	RequireConsentEachTime bool
}

// Approver is the external "Pairing approver" collaborator (spec.md §6):
// given a pair request and optional SAS, it returns a decision and
// permission set. Implementations: internal/cliapprove (interactive) and a
// headless/unattended default.
type Approver interface {
	Decide(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error)
}
