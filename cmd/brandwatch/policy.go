package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/models"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage a user's alert policy",
}

var policySetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Set the alert threshold and channels for a user",
	Long: `Set when a user is alerted about new or escalated threats.

Thresholds:
  all            every severity
  high_critical  high and critical (default)
  critical       critical only

--legacy accepts an old per-severity list such as "critical,high" and maps it
to the narrowest threshold that still covers every listed severity.

Examples:
  brandwatch policy set user-1 --threshold critical --webhook
  brandwatch policy set user-1 --legacy critical,high,medium`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetString("threshold")
		legacy, _ := cmd.Flags().GetString("legacy")
		email, _ := cmd.Flags().GetBool("email")
		webhook, _ := cmd.Flags().GetBool("webhook")

		req := api.PolicyRequest{
			Threshold:      threshold,
			EmailEnabled:   email,
			WebhookEnabled: webhook,
		}
		if cmd.Flags().Changed("legacy") {
			req.LegacySeverities = nonNil(splitCSV(legacy))
		}

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		p, err := be.PutAlertPolicy(ctx, args[0], req)
		if err != nil {
			return fmt.Errorf("saving alert policy: %w", err)
		}
		fmt.Println("[+] Alert policy saved")
		printPolicy(p)
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's alert policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		p, err := be.GetAlertPolicy(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading alert policy: %w", err)
		}
		printPolicy(p)
		return nil
	},
}

func printPolicy(p *models.AlertPolicy) {
	fmt.Printf("    User:      %s\n", p.UserID)
	fmt.Printf("    Threshold: %s\n", p.Threshold)
	fmt.Printf("    Email:     %t\n", p.EmailEnabled)
	fmt.Printf("    Webhook:   %t\n", p.WebhookEnabled)
}

func init() {
	policySetCmd.Flags().String("threshold", string(models.ThresholdHighCritical), "all, high_critical or critical")
	policySetCmd.Flags().String("legacy", "", "legacy comma-separated severity list to migrate")
	policySetCmd.Flags().Bool("email", true, "deliver alerts by email")
	policySetCmd.Flags().Bool("webhook", false, "deliver alerts to the configured webhook")

	policyCmd.AddCommand(policySetCmd, policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}
