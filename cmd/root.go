package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "decision-engine",
	Short: "Regulatory document decision and reconciliation engine",
	Long:  "Merges multi-source document extractions, resolves person identities, classifies legal directives, tracks response deadlines, and routes low-confidence cases to manual review.",
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
