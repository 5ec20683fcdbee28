package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/config"
	"github.com/sells-group/formfill-cli/internal/form"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "formfill",
	Short: "Fill structured forms from free-text transcripts",
	Long:  "Prompts Claude to fill form schemas from voice-note transcripts, salvages and validates the answers, and exports the records as JSON, YAML or spreadsheets.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		locale, err := cfg.Locale.Settings()
		if err != nil {
			return err
		}
		form.Configure(locale)

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
