package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/config"
	"github.com/Yates-Labs/reseek/internal/logger"
)

var (
	configFile string

	appConfig config.Config
	appLog    *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reseek",
	Short: "Reseek - Earnings call research with grounded answers",
	Long: `Reseek ingests earnings-call transcripts and answers questions about them.

It splits transcripts into retrievable chunks, indexes them for semantic search,
extracts analyst Q&A, writes a two-pass summary, and answers questions with
citations that point back at the transcript.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		appConfig, appLog = cfg, log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLog != nil {
			appLog.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}
