package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/config"
	"github.com/fakeyudi/auditrail/internal/profile"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded operator profile.
var activeProfile *profile.Profile

var rootCmd = &cobra.Command{
	Use:   "auditrail",
	Short: "Record filesystem changes into a tamper-evident hash-chained ledger",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup must work before any profile exists.
		if cmd.Name() == "setup" {
			return nil
		}

		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		} else if term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "hint: run 'auditrail setup' to record an operator name in session metadata")
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)

		// Profile values fill in config gaps.
		if activeProfile != nil && activeProfile.DefaultFormat != "" {
			if cfg.DefaultFormat == "" || cfg.DefaultFormat == "text" {
				cfg.DefaultFormat = activeProfile.DefaultFormat
			}
		}
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active operator profile.
func GetProfile() *profile.Profile {
	return activeProfile
}
