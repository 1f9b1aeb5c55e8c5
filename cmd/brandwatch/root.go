package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/config"
)

var (
	cfgFile   string
	serverURL string
	noColor   bool
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "brandwatch",
	Short: "Lookalike domain monitoring for brands",
	Long: `Brandwatch generates lookalike domains for a brand, probes each one for
DNS, web and registration signals, scores the risk, and tracks the resulting
threats through an analyst review workflow.

Commands run against the local store by default. Pass --server to drive a
running 'brandwatch serve' instance over its HTTP API instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		skipConfig := map[string]bool{
			"init":    true,
			"help":    true,
			"version": true,
		}
		if skipConfig[cmd.Name()] {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: search for brandwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL; when set, commands use the remote server")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "plain table output")

	rootCmd.Version = "0.1.0-dev"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
