package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lead-consensus",
	Short: "Multi-source lead enrichment with multi-provider consensus",
	Long:  "Collects contact data for leads from several sources, asks several LLM providers to judge it, reconciles their answers with inter-rater agreement statistics and scores each consolidated record.",
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
