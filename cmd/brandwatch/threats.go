package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/report"
	"github.com/hakim/brandwatch/internal/threat"
)

var threatsCmd = &cobra.Command{
	Use:   "threats",
	Short: "Review detected threats",
}

var threatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a brand's threats, highest score first",
	RunE: func(cmd *cobra.Command, args []string) error {
		brandID, _ := cmd.Flags().GetString("brand")
		severity, _ := cmd.Flags().GetString("severity")
		status, _ := cmd.Flags().GetString("status")

		filter := models.ThreatFilter{BrandID: brandID}
		if severity != "" {
			sev, ok := models.ParseSeverity(severity)
			if !ok {
				return fmt.Errorf("unknown severity %q (critical, high, medium, low)", severity)
			}
			filter.Severity = sev
		}
		if status != "" {
			st, ok := models.ParseThreatStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q", status)
			}
			filter.Status = st
		}

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		threats, err := be.ListThreats(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing threats: %w", err)
		}
		if len(threats) == 0 {
			fmt.Println("No threats found")
			return nil
		}
		report.WriteThreatTable(os.Stdout, threats, noColor)
		fmt.Printf("Total: %d threat(s)\n", len(threats))
		return nil
	},
}

var threatsSetStatusCmd = &cobra.Command{
	Use:   "set-status <threat-id> <status>",
	Short: "Move a threat through the review workflow",
	Long: `Move a threat to another review status:

  new -> reviewing -> takedown_requested -> resolved
  any open status  -> resolved or false_positive

Resolved and false-positive threats are closed; use 'threats reopen' to move
them back to review.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, ok := models.ParseThreatStatus(args[1])
		if !ok {
			return fmt.Errorf("unknown status %q", args[1])
		}

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		t, err := be.SetThreatStatus(ctx, args[0], to)
		switch {
		case errors.Is(err, threat.ErrTerminal):
			return fmt.Errorf("threat is closed; reopen it first: %w", err)
		case err != nil:
			return fmt.Errorf("updating threat: %w", err)
		}
		fmt.Printf("[+] %s is now %s\n", t.Domain, t.Status)
		return nil
	},
}

var threatsReopenCmd = &cobra.Command{
	Use:   "reopen <threat-id>",
	Short: "Reopen a resolved or false-positive threat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		t, err := be.ReopenThreat(ctx, args[0])
		if err != nil {
			return fmt.Errorf("reopening threat: %w", err)
		}
		fmt.Printf("[+] %s reopened as %s\n", t.Domain, t.Status)
		return nil
	},
}

func init() {
	threatsListCmd.Flags().String("brand", "", "brand ID (required)")
	threatsListCmd.Flags().String("severity", "", "only this severity")
	threatsListCmd.Flags().String("status", "", "only this review status")
	threatsListCmd.MarkFlagRequired("brand")

	threatsCmd.AddCommand(threatsListCmd, threatsSetStatusCmd, threatsReopenCmd)
	rootCmd.AddCommand(threatsCmd)
}
