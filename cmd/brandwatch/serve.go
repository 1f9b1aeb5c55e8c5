package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/scan"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scan engine and scheduler",
	Long: `Serve the brandwatch HTTP API.

On startup, scans left pending or running by a previous process are marked
failed. Scans are then scheduled for every brand at scan.schedule_interval:
a full scan when the brand's last completed full scan is older than
scan.full_schedule_interval, an incremental one otherwise. SIGINT or SIGTERM stops accepting requests and ends
running scans as failed before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		noSchedule, _ := cmd.Flags().GetBool("no-schedule")
		if addr == "" {
			addr = cfg.Server.ListenAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// ── 1. Logging and store ───────────────────────────────────────────────
		log, closer, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer closer.Close()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		// ── 2. Engine ──────────────────────────────────────────────────────────
		eng, err := newEngine(store, cfg, log)
		if err != nil {
			return err
		}
		recovered, err := eng.manager.RecoverInterrupted(ctx)
		if err != nil {
			return fmt.Errorf("recovering interrupted scans: %w", err)
		}
		if recovered > 0 {
			log.WithField("count", recovered).Warn("marked interrupted scans as failed")
		}

		// ── 3. Scheduler ───────────────────────────────────────────────────────
		if !noSchedule {
			sched := &scan.Scheduler{
				Manager:      eng.manager,
				Brands:       store,
				Interval:     cfg.Scan.ScheduleInterval,
				FullInterval: cfg.Scan.FullScheduleInterval,
				Logger:       log,
			}
			go sched.Run(ctx)
		}

		// ── 4. HTTP server ─────────────────────────────────────────────────────
		app := api.NewApp(store, eng.manager, eng.threats, log)
		srv := &http.Server{
			Addr:              addr,
			Handler:           app.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("api server: %w", err)
			}
		}

		// ── 5. Graceful shutdown ───────────────────────────────────────────────
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown incomplete")
		}
		if err := eng.manager.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("scan shutdown incomplete")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default: server.listen_addr)")
	serveCmd.Flags().Bool("no-schedule", false, "disable scheduled incremental scans")
	rootCmd.AddCommand(serveCmd)
}
