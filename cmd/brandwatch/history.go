package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show scan history for a brand",
	Long: `Display a table of past scans for a brand.

Scans are listed newest-first. Each row shows the scan ID (truncated), type,
trigger, status, counters and start time.

Use --limit to cap the number of rows shown (default: 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: Get flags
		brandID, _ := cmd.Flags().GetString("brand")
		limit, _ := cmd.Flags().GetInt("limit")

		// Step 2: Open backend
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		// Step 3: List scans (sorted newest-first by the store)
		scans, err := be.ListScans(ctx, brandID)
		if err != nil {
			return fmt.Errorf("listing scans for %s: %w", brandID, err)
		}
		if len(scans) == 0 {
			fmt.Printf("No scan history found for %s\n", brandID)
			return nil
		}

		// Step 4: Apply limit
		if limit > 0 && len(scans) > limit {
			scans = scans[:limit]
		}

		// Step 5: Print table
		fmt.Printf("\nScan History for %s\n", brandID)
		report.WriteScanTable(os.Stdout, scans, noColor)
		fmt.Printf("Total: %d scan(s)\n\n", len(scans))
		return nil
	},
}

func init() {
	historyCmd.Flags().String("brand", "", "brand ID (required)")
	historyCmd.Flags().Int("limit", 10, "maximum number of scans to display")
	historyCmd.MarkFlagRequired("brand")
	rootCmd.AddCommand(historyCmd)
}
