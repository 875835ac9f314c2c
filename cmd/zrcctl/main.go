// Package main provides the CLI entry point for zrcctl, the ZRC operator
// client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zrc-project/zrc/internal/config"
	"github.com/zrc-project/zrc/internal/control"
	"github.com/zrc-project/zrc/internal/identity"
	"github.com/zrc-project/zrc/internal/operator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zrcctl",
		Short: "zrcctl - ZRC operator client",
		Long: `zrcctl runs on the operator's machine. It redeems invites issued by a
device, then negotiates and drives remote-desktop sessions against paired
devices.`,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "pairing", Title: "Pairing:"})
	rootCmd.AddGroup(&cobra.Group{ID: "session", Title: "Sessions:"})
	rootCmd.AddGroup(&cobra.Group{ID: "status", Title: "Status:"})

	pair := pairCmd()
	pair.GroupID = "pairing"
	rootCmd.AddCommand(pair)

	connect := connectCmd()
	connect.GroupID = "session"
	rootCmd.AddCommand(connect)

	status := statusCmd()
	status.GroupID = "status"
	rootCmd.AddCommand(status)

	pairingsCmd := pairingsCmd()
	pairingsCmd.GroupID = "status"
	rootCmd.AddCommand(pairingsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func pairCmd() *cobra.Command {
	var configPath string
	var requestSAS bool

	cmd := &cobra.Command{
		Use:   "pair <invite-code>",
		Short: "Redeem an invite code and pair with a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOperator(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			o, err := operator.New(cfg)
			if err != nil {
				return fmt.Errorf("create operator: %w", err)
			}
			if err := o.Start(); err != nil {
				return fmt.Errorf("start operator: %w", err)
			}
			defer o.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			record, err := o.Pair(ctx, args[0], requestSAS)
			if err != nil {
				return fmt.Errorf("pair: %w", err)
			}

			fmt.Printf("Paired with device %s\n", record.DeviceID.String())
			fmt.Printf("Permissions:     %v\n", record.GrantedPermissions.Slice())
			fmt.Printf("Unattended:      %v\n", record.UnattendedEnabled)
			fmt.Printf("Consent-each:    %v\n", record.RequireConsentEachTime)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./zrcctl.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&requestSAS, "sas", true, "Request a short authentication string for out-of-band verification")

	return cmd
}

func connectCmd() *cobra.Command {
	var configPath string
	var rendezvousAddr string

	cmd := &cobra.Command{
		Use:   "connect <device-id>",
		Short: "Connect to a paired device and run a remote session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := identity.ParseID32(args[0])
			if err != nil {
				return fmt.Errorf("parse device id: %w", err)
			}

			cfg, err := config.LoadOperator(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			o, err := operator.New(cfg)
			if err != nil {
				return fmt.Errorf("create operator: %w", err)
			}
			if err := o.Start(); err != nil {
				return fmt.Errorf("start operator: %w", err)
			}
			defer o.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			sess, err := o.Connect(ctx, deviceID, rendezvousAddr)
			cancel()
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer sess.Close()

			fmt.Println("Session established. Press Ctrl+C to disconnect.")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nDisconnecting...")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./zrcctl.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&rendezvousAddr, "rendezvous", "", "Rendezvous server address (host:port)")
	cmd.MarkFlagRequired("rendezvous")

	return cmd
}

func statusCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show operator client status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			st, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("query status: %w", err)
			}
			fmt.Printf("Operator ID:   %s\n", st.AgentID)
			fmt.Printf("Running:       %v\n", st.Running)
			fmt.Printf("Pairing Count: %d\n", st.PairingCount)
			fmt.Printf("Session Count: %d\n", st.SessionCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcctl.sock", "Control socket path")
	return cmd
}

func pairingsCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "List known pairing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := control.NewClient(socketPath)
			defer c.Close()

			resp, err := c.Pairings(ctx)
			if err != nil {
				return fmt.Errorf("query pairings: %w", err)
			}
			for _, p := range resp.Pairings {
				fmt.Printf("%s  pairing=%s  perms=%v  unattended=%v\n", p.OperatorID, p.PairingID, p.Permissions, p.UnattendedEnabled)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "./data/zrcctl.sock", "Control socket path")
	return cmd
}
