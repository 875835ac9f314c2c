// Package main provides the CLI entry point for zrcd, the ZRC device
// daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zrc-project/zrc/internal/cliapprove"
	"github.com/zrc-project/zrc/internal/config"
	"github.com/zrc-project/zrc/internal/control"
	"github.com/zrc-project/zrc/internal/device"
	"github.com/zrc-project/zrc/internal/pairing"
	"github.com/zrc-project/zrc/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zrcd",
		Short: "zrcd - ZRC device daemon",
		Long: `zrcd runs on the machine being remoted into. It issues invites,
approves pairing requests, and serves remote-desktop sessions to paired
operators.`,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "start", Title: "Getting Started:"})
	rootCmd.AddGroup(&cobra.Group{ID: "status", Title: "Status:"})
	rootCmd.AddGroup(&cobra.Group{ID: "admin", Title: "Administration:"})

	start := startCmd()
	start.GroupID = "start"
	rootCmd.AddCommand(start)

	status := statusCmd()
	status.GroupID = "status"
	rootCmd.AddCommand(status)

	pairingsCmd := pairingsCmd()
	pairingsCmd.GroupID = "status"
	rootCmd.AddCommand(pairingsCmd)

	sessionsCmd := sessionsCmd()
	sessionsCmd.GroupID = "status"
	rootCmd.AddCommand(sessionsCmd)

	invite := inviteCmd()
	invite.GroupID = "admin"
	rootCmd.AddCommand(invite)

	revoke := revokeCmd()
	revoke.GroupID = "admin"
	rootCmd.AddCommand(revoke)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var configPath string
	var headless bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the device daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDevice(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var approver pairing.Approver
			if headless {
				approver = cliapprove.Headless{
					GrantedPermissions: wire.NewPermissionSet(wire.PermissionView),
				}
			} else {
				approver = cliapprove.Interactive{}
			}

			d, err := device.New(cfg, approver)
			if err != nil {
				return fmt.Errorf("create device: %w", err)
			}

			fmt.Printf("Device ID: %s\n", d.ID().String())

			if err := d.Start(); err != nil {
				return fmt.Errorf("start device: %w", err)
			}
			fmt.Printf("Rendezvous: %s  QUIC: %s\n", cfg.Rendezvous.Address, cfg.Rendezvous.QUICAddress)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

			return d.Stop()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./zrcd.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&headless, "headless", false, "Use the headless (non-interactive) approver, approving every pairing request without a prompt")

	return cmd
}

func statusCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show device daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			st, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("query status: %w", err)
			}
			fmt.Printf("Agent ID:      %s\n", st.AgentID)
			fmt.Printf("Running:       %v\n", st.Running)
			fmt.Printf("Pairing Count: %d\n", st.PairingCount)
			fmt.Printf("Session Count: %d\n", st.SessionCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcd.sock", "Control socket path")
	return cmd
}

func pairingsCmd() *cobra.Command {
	var socketPath string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "List pairing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			resp, err := c.Pairings(ctx)
			if err != nil {
				return fmt.Errorf("query pairings: %w", err)
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			for _, p := range resp.Pairings {
				fmt.Printf("%s  pairing=%s  perms=%v  unattended=%v\n", p.OperatorID, p.PairingID, p.Permissions, p.UnattendedEnabled)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcd.sock", "Control socket path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func sessionsCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			resp, err := c.Sessions(ctx)
			if err != nil {
				return fmt.Errorf("query sessions: %w", err)
			}
			for _, s := range resp.Sessions {
				fmt.Printf("%s  operator=%s  started=%s\n", s.SessionID, s.OperatorID, s.StartedAt)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcd.sock", "Control socket path")
	return cmd
}

// inviteCmd and revokeCmd talk to a running daemon over its local control
// socket (SPEC_FULL.md §4.11's admin API, extended with write endpoints
// for invite issuance and pairing revocation).
func inviteCmd() *cobra.Command {
	var socketPath string
	var ttl time.Duration
	var perms []string
	var requireConsent bool
	var requestSAS bool

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Issue a fresh invite code on the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			resp, err := c.CreateInvite(ctx, control.CreateInviteRequest{
				TTLSeconds:     int(ttl.Seconds()),
				Permissions:    perms,
				RequireConsent: requireConsent,
				RequestSAS:     requestSAS,
			})
			if err != nil {
				return fmt.Errorf("create invite: %w", err)
			}
			fmt.Println(resp.InviteCode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcd.sock", "Control socket path")
	cmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "Invite lifetime")
	cmd.Flags().StringSliceVar(&perms, "permissions", []string{string(wire.PermissionView)}, "Default granted permissions")
	cmd.Flags().BoolVar(&requireConsent, "require-consent", true, "Require consent on every session")
	cmd.Flags().BoolVar(&requestSAS, "sas", true, "Request a short authentication string for out-of-band verification")
	return cmd
}

func revokeCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "revoke <operator-id>",
		Short: "Revoke a pairing on the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			if err := c.RevokePairing(ctx, args[0]); err != nil {
				return fmt.Errorf("revoke pairing: %w", err)
			}
			fmt.Printf("Revoked pairing for operator_id=%s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcd.sock", "Control socket path")
	return cmd
}
