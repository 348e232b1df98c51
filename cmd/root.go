package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prospector",
	Short: "Business lead discovery and enrichment pipeline",
	Long:  "Discovers businesses from geographic keyword searches, enriches them with corporate-registry and contact data, and exports scored, deduplicated, fully-attributed lead records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
