package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hakim/brandwatch/internal/config"
	"github.com/hakim/brandwatch/internal/storage"
)

var (
	initForce bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize brandwatch with default configuration",
	Long: `Creates a default configuration file (brandwatch.yaml) and sets up the
configured store. For the postgres driver this applies the schema migrations.

This is typically the first command you run when setting up brandwatch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(initDir, "brandwatch.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("config file already exists at %s. Use --force to overwrite", configPath)
		}

		if err := storage.EnsureDir(initDir); err != nil {
			return fmt.Errorf("failed to create %s: %w", initDir, err)
		}
		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Printf("Created %s with default configuration\n", configPath)

		// Load the config we just created to get the store settings
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if c.Storage.Driver == "bolt" && !filepath.IsAbs(c.Storage.BoltPath) {
			c.Storage.BoltPath = filepath.Join(initDir, c.Storage.BoltPath)
		}

		store, err := openStore(context.Background(), c)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		fmt.Printf("Initialized %s store\n", c.Storage.Driver)

		fmt.Println()
		fmt.Println("Brandwatch initialized successfully!")
		fmt.Println("Run 'brandwatch brand add' to register your first brand.")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "output directory")
	rootCmd.AddCommand(initCmd)
}
