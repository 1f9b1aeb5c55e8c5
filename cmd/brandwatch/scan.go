package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a brand for lookalike domains",
	Long: `Trigger a scan for a brand and follow it until it finishes.

A full scan generates lookalike candidates from the brand domain using the
selected strategies. An incremental scan re-probes the brand's open threats.
Progress is polled every poll.interval up to poll.max_attempts.

Without --server the scan runs inside this process and stops when the command
exits. Interrupting with Ctrl-C cancels the scan.

Presets: ` + strings.Join(permute.PresetNames(), ", ") + `

Examples:
  brandwatch scan --brand 5f0c...
  brandwatch scan --brand 5f0c... --preset typo
  brandwatch scan --brand 5f0c... --strategies omission,homoglyph
  brandwatch scan --brand 5f0c... --type incremental --server http://127.0.0.1:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// ── 1. Read all flags ──────────────────────────────────────────────────
		brandID, _ := cmd.Flags().GetString("brand")
		scanType, _ := cmd.Flags().GetString("type")
		preset, _ := cmd.Flags().GetString("preset")
		strategies, _ := cmd.Flags().GetString("strategies")
		detach, _ := cmd.Flags().GetBool("detach")

		if detach && serverURL == "" {
			return fmt.Errorf("--detach needs --server: a local scan stops when the command exits")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// ── 2. Open backend ────────────────────────────────────────────────────
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		// ── 3. Trigger ─────────────────────────────────────────────────────────
		resp, err := be.TriggerScan(ctx, api.CreateScanRequest{
			BrandID:    brandID,
			Type:       scanType,
			Preset:     preset,
			Strategies: splitCSV(strategies),
		})
		if err != nil {
			return fmt.Errorf("starting scan: %w", err)
		}
		fmt.Printf("[*] Scan %s started (%s)\n", resp.ScanID, resp.Status)

		if detach {
			fmt.Printf("[*] Follow it with: brandwatch status %s --server %s\n", resp.ScanID, serverURL)
			return nil
		}

		// ── 4. Poll until terminal ─────────────────────────────────────────────
		return followScan(ctx, be, resp.ScanID)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <scan-id>",
	Short: "Show a scan's status and counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		view, err := be.ScanStatus(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading scan: %w", err)
		}
		printScanSummary(view)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <scan-id>",
	Short: "Cancel a running scan",
	Long: `Cancel a running scan. Candidates already probed keep their results; no
further candidates are started. Cancelling a finished scan is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		view, err := be.CancelScan(ctx, args[0])
		if err != nil {
			return fmt.Errorf("cancelling scan: %w", err)
		}
		if view.Status.Terminal() {
			fmt.Printf("[*] Scan %s is %s\n", view.ID, view.Status)
		} else {
			fmt.Printf("[+] Cancellation requested for scan %s\n", view.ID)
		}
		return nil
	},
}

// followScan polls a scan to a terminal status, printing progress as the
// counters move. An interrupted ctx cancels the scan.
func followScan(ctx context.Context, be backend, id string) error {
	var last models.ScanStatusView
	view, err := be.WaitForScan(ctx, id, func(v models.ScanStatusView) {
		if v.Status == last.Status && v.DomainsChecked == last.DomainsChecked &&
			v.PagesScanned == last.PagesScanned && v.ThreatsFound == last.ThreatsFound {
			return
		}
		last = v
		fmt.Printf("[*] %-9s  checked %d/%d  pages %d  threats %d\n",
			v.Status, v.DomainsChecked, v.Candidates, v.PagesScanned, v.ThreatsFound)
	})

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("[!] Interrupted, cancelling scan")
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, cerr := be.CancelScan(cancelCtx, id); cerr != nil {
			return fmt.Errorf("cancelling scan: %w", cerr)
		}
		return nil
	case errors.Is(err, scan.ErrPollExhausted):
		fmt.Printf("[!] Scan %s still running after %d polls; check later with 'brandwatch status %s'\n",
			id, cfg.Poll.MaxAttempts, id)
		return nil
	case err != nil:
		return fmt.Errorf("polling scan: %w", err)
	}

	fmt.Println()
	printScanSummary(view)
	if view.Status == models.StatusCompleted && view.ThreatsFound > 0 {
		fmt.Printf("\nRun 'brandwatch threats list --brand %s' to review.\n", view.BrandID)
	}
	return nil
}

func printScanSummary(v models.ScanStatusView) {
	switch v.Status {
	case models.StatusCompleted:
		fmt.Println("[+] Scan complete!")
	case models.StatusFailed:
		fmt.Println("[!] Scan failed")
	case models.StatusCancelled:
		fmt.Println("[!] Scan cancelled")
	}
	fmt.Printf("    Scan ID:    %s\n", v.ID)
	fmt.Printf("    Brand ID:   %s\n", v.BrandID)
	fmt.Printf("    Status:     %s\n", v.Status)
	fmt.Printf("    Candidates: %d\n", v.Candidates)
	fmt.Printf("    Checked:    %d\n", v.DomainsChecked)
	fmt.Printf("    Pages:      %d\n", v.PagesScanned)
	fmt.Printf("    Threats:    %d\n", v.ThreatsFound)
	if v.StartedAt != nil {
		end := time.Now()
		if v.CompletedAt != nil {
			end = *v.CompletedAt
		}
		fmt.Printf("    Elapsed:    %s\n", end.Sub(*v.StartedAt).Round(time.Second))
	}
	if v.Error != "" {
		fmt.Printf("    Reason:     %s\n", v.Error)
	}
}

// splitCSV splits a comma-separated flag value, dropping blanks.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	scanCmd.Flags().String("brand", "", "brand ID (required)")
	scanCmd.Flags().String("type", "full", "scan type: full or incremental")
	scanCmd.Flags().String("preset", "", "strategy preset")
	scanCmd.Flags().String("strategies", "", "comma-separated strategies (overrides the preset)")
	scanCmd.Flags().Bool("detach", false, "return after triggering (requires --server)")
	scanCmd.MarkFlagRequired("brand")

	rootCmd.AddCommand(scanCmd, statusCmd, cancelCmd)
}
