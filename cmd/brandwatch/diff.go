package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/diff"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/report"
	"github.com/hakim/brandwatch/internal/storage"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two scans of a brand and report what changed",
	Long: `Compare the findings of two completed scans of a brand: lookalike domains
that appeared, disappeared, or moved between severity tiers.

Without --scan and --compare the two most recent completed scans are used.
The markdown report is printed, and also written under --out when given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: Get flags
		brandID, _ := cmd.Flags().GetString("brand")
		currentID, _ := cmd.Flags().GetString("scan")
		previousID, _ := cmd.Flags().GetString("compare")
		outDir, _ := cmd.Flags().GetString("out")

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		// Step 2: Resolve the two scans
		brand, err := be.GetBrand(ctx, brandID)
		if err != nil {
			return fmt.Errorf("loading brand: %w", err)
		}
		scans, err := be.ListScans(ctx, brandID)
		if err != nil {
			return fmt.Errorf("looking up scan history: %w", err)
		}
		current, previous, err := pickDiffScans(scans, currentID, previousID)
		if err != nil {
			return err
		}
		if previous == nil {
			fmt.Printf("[!] No previous scan found for comparison\n")
			return nil
		}
		fmt.Printf("[*] Current scan:  %s\n", current.ID)
		fmt.Printf("[*] Previous scan: %s\n", previous.ID)

		// Step 3: Load both snapshots
		currentSnap, err := diff.LoadSnapshot(ctx, be, current)
		if err != nil {
			return fmt.Errorf("loading current snapshot: %w", err)
		}
		previousSnap, err := diff.LoadSnapshot(ctx, be, previous)
		if err != nil {
			return fmt.Errorf("loading previous snapshot: %w", err)
		}

		// Step 4: Compute diff and render
		result := diff.ComputeDiff(currentSnap, previousSnap)
		now := time.Now()
		md := report.BuildDiffReport(result, current, previous, now)
		fmt.Println()
		fmt.Print(md)

		if outDir != "" {
			path, err := storage.WriteReport(outDir, brand.Domain+"-diff", now, md)
			if err != nil {
				// Warn but do not abort; the report was already printed
				fmt.Printf("[!] Warning: failed to write diff report: %v\n", err)
			} else {
				fmt.Printf("[+] Diff report written to %s\n", path)
			}
		}

		// Step 5: Print summary
		fmt.Println()
		fmt.Printf("[+] Diff complete!\n")
		fmt.Printf("    Domains:  +%d new, -%d disappeared\n", len(result.New), len(result.Disappeared))
		fmt.Printf("    Severity: %d escalated, %d de-escalated, %d unchanged\n",
			len(result.Escalated), len(result.DeEscalated), result.Unchanged)
		return nil
	},
}

// pickDiffScans resolves the scans to compare. scans is newest-first. An
// explicit ID must name one of the brand's scans; otherwise the newest
// completed scans are used. previous is nil when there is nothing to compare.
func pickDiffScans(scans []*models.Scan, currentID, previousID string) (current, previous *models.Scan, err error) {
	find := func(id string) (*models.Scan, error) {
		for _, s := range scans {
			if s.ID == id {
				return s, nil
			}
		}
		return nil, fmt.Errorf("scan %s: %w", id, storage.ErrNotFound)
	}

	var completed []*models.Scan
	for _, s := range scans {
		if s.Status == models.StatusCompleted {
			completed = append(completed, s)
		}
	}

	if currentID != "" {
		if current, err = find(currentID); err != nil {
			return nil, nil, err
		}
	} else if len(completed) > 0 {
		current = completed[0]
	} else {
		return nil, nil, fmt.Errorf("no completed scan to compare")
	}

	if previousID != "" {
		if previous, err = find(previousID); err != nil {
			return nil, nil, err
		}
		return current, previous, nil
	}
	for _, s := range completed {
		if s.ID != current.ID && s.CreatedAt.Before(current.CreatedAt) {
			return current, s, nil
		}
	}
	return current, nil, nil
}

func init() {
	diffCmd.Flags().String("brand", "", "brand ID (required)")
	diffCmd.Flags().String("scan", "", "current scan ID (default: latest completed)")
	diffCmd.Flags().String("compare", "", "previous scan ID (default: the completed scan before --scan)")
	diffCmd.Flags().String("out", "", "directory to write the markdown report to")
	diffCmd.MarkFlagRequired("brand")
	rootCmd.AddCommand(diffCmd)
}
