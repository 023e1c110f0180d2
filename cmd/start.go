package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/session"
	"github.com/fakeyudi/auditrail/internal/store"
	"github.com/fakeyudi/auditrail/internal/tracker"
)

var startOperator string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Snapshot the working directory and record changes until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		operator := startOperator
		if operator == "" && GetProfile() != nil {
			operator = GetProfile().Name
		}

		s, err := session.Begin(cwd, GetConfig(), operator)
		if err != nil {
			if errors.Is(err, store.ErrLockHeld) {
				if info, lerr := store.ReadLock(session.ArtifactDir(cwd, GetConfig())); lerr == nil && info != nil {
					return fmt.Errorf("session already in progress (pid %d, started %s); run 'auditrail stop' if it is stale",
						info.PID, info.StartedAt.Format(time.RFC3339))
				}
				return fmt.Errorf("session already in progress; run 'auditrail stop' if it is stale")
			}
			return err
		}

		fmt.Println("Snapshotting baseline...")
		if err := s.Snapshot(); err != nil {
			return err
		}
		fmt.Printf("Baseline captured: %d files.\n", len(s.Baseline().Files))

		if err := s.StartTracking(); err != nil {
			return err
		}
		fmt.Printf("Session %s recording. Press Ctrl-C to stop.\n", s.Meta.ID)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := tracker.Watch(ctx, s.Tracker()); err != nil {
			// Best effort: release the lock before surfacing the failure.
			s.StopTracking()
			s.Finalize()
			return fmt.Errorf("filesystem watch: %w", err)
		}

		if err := s.StopTracking(); err != nil {
			return err
		}
		sum, sig, err := s.Finalize()
		if err != nil {
			return err
		}

		for _, w := range s.Warnings() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		fmt.Printf("Session stopped. %d added, %d modified, %d deleted, %d renamed (severity %s).\n",
			sum.FilesAdded, sum.FilesModified, sum.FilesDeleted, sum.FilesRenamed, sig.Severity)
		fmt.Printf("Artifacts: %s\n", s.Dir())
		return nil
	},
}

func init() {
	startCmd.Flags().StringVar(&startOperator, "operator", "", "Operator name recorded in session metadata (defaults to profile name)")
	rootCmd.AddCommand(startCmd)
}
