package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/session"
	"github.com/fakeyudi/auditrail/internal/store"
)

var stopFormat string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Finalize a stale session left behind by a crashed recorder",
	Long: `Stop recomputes the session and signal summaries from whatever baseline
and ledger survived, stamps the stop time and removes the session lock.
A running recorder finalizes itself on Ctrl-C; stop exists for sessions
whose recorder died without cleaning up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		dir := session.ArtifactDir(cwd, GetConfig())
		info, err := store.ReadLock(dir)
		if err != nil {
			return err
		}
		if info == nil {
			if _, err := session.LoadMeta(dir); errors.Is(err, session.ErrNoSession) {
				return fmt.Errorf("no session to stop")
			}
		}

		sum, sig, err := session.FinalizeStale(cwd, GetConfig())
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return fmt.Errorf("no session to stop")
			}
			return err
		}

		format := stopFormat
		if format == "" {
			format = GetConfig().DefaultFormat
		}
		if format == "json" {
			out := map[string]any{
				"session_summary": sum,
				"signal_summary":  sig,
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		}

		cmd.Printf("Session finalized. %d added, %d modified, %d deleted, %d renamed (severity %s).\n",
			sum.FilesAdded, sum.FilesModified, sum.FilesDeleted, sum.FilesRenamed, sig.Severity)
		if sum.SkippedLines > 0 {
			cmd.Printf("warning: %d unparseable ledger line(s) skipped\n", sum.SkippedLines)
		}
		cmd.Printf("Artifacts: %s\n", dir)
		return nil
	},
}

func init() {
	stopCmd.Flags().StringVar(&stopFormat, "format", "", "Output format: text or json (overrides config)")
	rootCmd.AddCommand(stopCmd)
}
