// Package cliapprove provides the reference pairing.Approver
// implementations: an interactive terminal prompt built on huh/lipgloss,
// and a headless approver for unattended device provisioning.
package cliapprove

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/wire"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	sasStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
)

// Interactive is a pairing.Approver that prompts a human at the device's
// own terminal: it shows the requesting operator's identity and SAS (if
// present) and asks for an explicit approve/deny plus the permission set
// and unattended-access policy to grant.
type Interactive struct{}

// Decide implements pairing.Approver.
func (Interactive) Decide(ctx context.Context, req pairing.ApprovalRequest) (pairing.ApprovalDecision, error) {
	fmt.Println(titleStyle.Render("Incoming pairing request"))
	fmt.Printf("  operator id : %s\n", req.OperatorID)
	if req.SAS != "" {
		fmt.Printf("  SAS code    : %s\n", sasStyle.Render(req.SAS))
	}

	var approve bool
	var perms []string
	var unattended bool
	var requireConsentEach bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Approve this device pairing?").
				Affirmative("Approve").
				Negative("Deny").
				Value(&approve),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Grant permissions").
				Options(
					huh.NewOption("View screen", string(wire.PermissionView)),
					huh.NewOption("Send input", string(wire.PermissionInput)),
					huh.NewOption("Clipboard sync", string(wire.PermissionClipboard)),
					huh.NewOption("File transfer", string(wire.PermissionFiles)),
				).
				Value(&perms),
			huh.NewConfirm().
				Title("Allow unattended future sessions?").
				Value(&unattended),
			huh.NewConfirm().
				Title("Still require consent on every session?").
				Value(&requireConsentEach),
		).WithHideFunc(func() bool { return !approve }),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return pairing.ApprovalDecision{}, fmt.Errorf("cliapprove: run form: %w", err)
	}

	if !approve {
		return pairing.ApprovalDecision{Approved: false}, nil
	}

	granted := make([]wire.Permission, 0, len(perms))
	for _, p := range perms {
		granted = append(granted, wire.Permission(p))
	}

	return pairing.ApprovalDecision{
		Approved:               true,
		GrantedPermissions:     wire.NewPermissionSet(granted...),
		UnattendedEnabled:      unattended,
		RequireConsentEachTime: requireConsentEach,
	}, nil
}

// Headless is a pairing.Approver for unattended device provisioning: it
// approves automatically with a fixed permission set and policy, used for
// kiosk or CI-provisioned devices where no human is present to confirm a
// SAS. Operators deploying this MUST distribute invites only over a
// channel they already trust, since no out-of-band human check occurs.
type Headless struct {
	GrantedPermissions     wire.PermissionSet
	UnattendedEnabled      bool
	RequireConsentEachTime bool
}

// Decide implements pairing.Approver by approving unconditionally.
func (h Headless) Decide(_ context.Context, _ pairing.ApprovalRequest) (pairing.ApprovalDecision, error) {
	return pairing.ApprovalDecision{
		Approved:               true,
		GrantedPermissions:     h.GrantedPermissions,
		UnattendedEnabled:      h.UnattendedEnabled,
		RequireConsentEachTime: h.RequireConsentEachTime,
	}, nil
}
