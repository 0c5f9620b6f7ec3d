package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "inspection-match",
	Short: "Match inspection requests to accredited companies",
	Long:  "Geocodes an inspection request, filters the company roster by service and state, ranks the eligible companies by distance and load, and manages the standby shortlist.",
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
