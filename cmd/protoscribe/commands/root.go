package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/protoscribe/protoscribe/cmd/protoscribe/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "protoscribe",
	Short: "Meeting survey protocol assistant",
	Long: `protoscribe - chat with meeting transcripts and turn them into
formal survey protocols (Markdown + DOCX).

Configuration is a single YAML file in the OS config directory:
  macOS:   ~/Library/Application Support/protoscribe/config.yaml
  Linux:   ~/.config/protoscribe/config.yaml
  Windows: %AppData%/protoscribe/config.yaml

API keys may also come from the OPENAI_API_KEY and GEMINI_API_KEY
environment variables.

Examples:
  # Run the HTTP service
  protoscribe serve

  # One-shot generation from a transcript file
  protoscribe generate -f transcript.yaml -o out/

  # Extract a field from the generated protocol
  protoscribe generate -f transcript.yaml --query '.decisions[].text'

  # Inspect or replace the assistant instruction
  protoscribe instruction get
  protoscribe instruction set -f instruction.md`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig loads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
