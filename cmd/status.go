package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/ledger"
	"github.com/fakeyudi/auditrail/internal/session"
	"github.com/fakeyudi/auditrail/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current recording session status",
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

		meta, err := session.LoadMeta(dir)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				cmd.Println("no session")
				return nil
			}
			return err
		}

		if info != nil {
			cmd.Printf("Session %s active (pid %d)\n", info.SessionID, info.PID)
		} else if meta.StopTime != nil {
			cmd.Printf("Session %s finished\n", meta.ID)
		} else {
			cmd.Printf("Session %s stale (no lock, no stop time); run 'auditrail stop'\n", meta.ID)
		}

		cmd.Printf("Started: %s\n", meta.StartTime.Format(time.RFC3339))
		if meta.StopTime != nil {
			cmd.Printf("Stopped: %s\n", meta.StopTime.Format(time.RFC3339))
			cmd.Printf("Duration: %s\n", meta.StopTime.Sub(meta.StartTime).Round(time.Second).String())
		} else {
			cmd.Printf("Duration: %s\n", time.Since(meta.StartTime).Round(time.Second).String())
		}
		if meta.Operator != "" {
			cmd.Printf("Operator: %s\n", meta.Operator)
		}

		entries, skipped, err := ledger.New(filepath.Join(dir, session.LedgerFile)).Read()
		if err != nil {
			return err
		}
		cmd.Printf("Ledger records: %d\n", len(entries))
		if skipped > 0 {
			cmd.Printf("Unparseable lines: %d\n", skipped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
