package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/report"
	"github.com/hakim/brandwatch/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown threat report for a brand",
	Long: `Generate a markdown report of a brand's threats grouped by severity, its
closed threats, and recent scan history.

Results are saved to:
  {out}/{domain}_{YYYYMMDD}_{HHMMSS}.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		brandID, _ := cmd.Flags().GetString("brand")
		outDir, _ := cmd.Flags().GetString("out")
		scanLimit, _ := cmd.Flags().GetInt("scans")

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		brand, err := be.GetBrand(ctx, brandID)
		if err != nil {
			return fmt.Errorf("loading brand: %w", err)
		}
		threats, err := be.ListThreats(ctx, models.ThreatFilter{BrandID: brand.ID})
		if err != nil {
			return fmt.Errorf("listing threats: %w", err)
		}
		scans, err := be.ListScans(ctx, brand.ID)
		if err != nil {
			return fmt.Errorf("listing scans: %w", err)
		}
		if scanLimit > 0 && len(scans) > scanLimit {
			scans = scans[:scanLimit]
		}

		now := time.Now()
		md := report.BuildThreatReport(brand, threats, scans, now)
		path, err := storage.WriteReport(outDir, brand.Domain, now, md)
		if err != nil {
			return err
		}
		fmt.Printf("[+] Report written to %s (%d threats)\n", path, len(threats))
		return nil
	},
}

func init() {
	reportCmd.Flags().String("brand", "", "brand ID (required)")
	reportCmd.Flags().String("out", "reports", "output directory")
	reportCmd.Flags().Int("scans", 10, "number of recent scans to include")
	reportCmd.MarkFlagRequired("brand")
	rootCmd.AddCommand(reportCmd)
}
