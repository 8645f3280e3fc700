// Command vitalis runs the report pipeline on local files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vitalis-health/vitalis/backend/internal/config"
	"github.com/vitalis-health/vitalis/backend/internal/logging"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vitalis",
	Short: "Medical report extraction and health scoring",
	Long: `Extract lab values, medications, and diagnoses from medical reports,
score them, and produce a patient-facing analysis.

AI analysis uses the provider configured through AI_PROVIDER and its API
key. Without one the deterministic rule-based analysis is used.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		logger, err = logging.NewLogger(level, "console", "vitalis-cli")
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
