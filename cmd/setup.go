package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/profile"
)

var (
	setupName   string
	setupFormat string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Save an operator profile (re-run anytime to edit settings)",
	// Bypass the normal PersistentPreRunE so setup works before a profile exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		prof := &profile.Profile{}
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return err
			}
			prof = p
		}

		if setupName != "" {
			prof.Name = setupName
		}
		if setupFormat != "" {
			if setupFormat != "text" && setupFormat != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", setupFormat)
			}
			prof.DefaultFormat = setupFormat
		}

		if err := profile.Save(prof); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
		cmd.Println("Profile saved. Run 'auditrail start' to begin a session.")
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVar(&setupName, "name", "", "Operator name recorded in session metadata")
	setupCmd.Flags().StringVar(&setupFormat, "format", "", "Default output format: text or json")
	rootCmd.AddCommand(setupCmd)
}
