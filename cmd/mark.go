package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/ledger"
	"github.com/fakeyudi/auditrail/internal/session"
	"github.com/fakeyudi/auditrail/internal/store"
)

var markCmd = &cobra.Command{
	Use:   "mark <message>",
	Short: "Chain an operator annotation into the active session ledger",
	Args:  cobra.ExactArgs(1),
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
			return fmt.Errorf("no active session")
		}

		l := ledger.New(filepath.Join(dir, session.LedgerFile))
		_, err = l.Append(ledger.Record{
			Op:        ledger.OpRaw,
			EventType: "note",
			Payload: map[string]any{
				"session_id": info.SessionID,
				"text":       args[0],
			},
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		cmd.Println("Mark recorded.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(markCmd)
}
