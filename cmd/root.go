package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/config"
)

var (
	cfg      *config.Config
	asOfFlag string
)

var rootCmd = &cobra.Command{
	Use:   "account-strategy",
	Short: "Account prioritization, coverage, and leakage reporting",
	Long: "Scores every account by ROI speed, assigns a sales phase (1A/1B/2/3), audits rep coverage, " +
		"and flags order-frequency leakage with a next-best-call shortlist.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if asOfFlag != "" {
			c.Engine.AsOf = asOfFlag
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

func init() {
	rootCmd.PersistentFlags().StringVar(&asOfFlag, "as-of", "", "as-of date YYYY-MM-DD (default: engine.as_of, then latest order)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
