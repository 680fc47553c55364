package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/shotmeter/internal/config"
)

var (
	configPath string
	dbPath     string

	// RootCmd is the root command for shotmeter
	RootCmd = &cobra.Command{
		Use:   "shotmeter",
		Short: "Activity meter for work-tracking webcam shots and screenshots",
		Long: `shotmeter follows the log written by the work-tracking desktop client and
shows, for each 10-minute window, whether a webcam shot and a screenshot
have been taken.

Display states:
  • Stop:    no webcam shot yet in this window
  • OK:      a webcam shot was taken
  • Smile:   both a webcam shot and a screenshot were taken
  • Warning: the window is about to close

Quick Start:
  1. shotmeter watch            # foreground, Ctrl+C to stop
  2. shotmeter watch --daemon   # or keep it running in the background
  3. shotmeter status

Examples:
  # Check daemon status and the current window
  shotmeter status

  # Show recent events and state changes
  shotmeter history --limit 50

  # Test which lines of a log would be recognized
  shotmeter classify deskapp.log`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "shotmeter: activity meter for work-tracking shots")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'shotmeter watch' to start monitoring.")
			fmt.Fprintln(out, "Run 'shotmeter --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/shotmeter/config.toml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "journal database path (default: ~/.shotmeter/shotmeter.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(watchCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads the config file and applies the global --db flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		resolved, err := config.ExpandPath(dbPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --db path: %w", err)
		}
		cfg.DBPath = resolved
	}
	return cfg, nil
}

// stateDir returns ~/.shotmeter, creating it if needed.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".shotmeter")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create shotmeter directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default daemon log file path
func getDefaultLogFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
