package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/auditrail/internal/ledger"
	"github.com/fakeyudi/auditrail/internal/session"
	"github.com/fakeyudi/auditrail/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [session-dir]",
	Short: "Browse session artifacts in an interactive viewer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dir string
		if len(args) == 1 {
			dir = args[0]
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			dir = session.ArtifactDir(cwd, GetConfig())
		}

		r, err := tui.LoadReport(dir)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return fmt.Errorf("no session artifacts in %s", dir)
			}
			return err
		}

		if plainOutput {
			printReport(r)
			return nil
		}
		return tui.Run(r)
	},
}

// printReport writes a plain-text rendering to stdout.
func printReport(r *tui.Report) {
	fmt.Println("## Session")
	fmt.Printf("  ID:        %s\n", r.Meta.ID)
	fmt.Printf("  Work dir:  %s\n", r.Meta.WorkDir)
	fmt.Printf("  Started:   %s\n", r.Meta.StartTime.Format("2006-01-02 15:04:05 MST"))
	if r.Meta.StopTime != nil {
		fmt.Printf("  Stopped:   %s\n", r.Meta.StopTime.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("  Duration:  %s\n", r.Meta.StopTime.Sub(r.Meta.StartTime).Round(time.Second))
	} else {
		fmt.Println("  Stopped:   (still recording)")
	}
	if r.Meta.Operator != "" {
		fmt.Printf("  Operator:  %s\n", r.Meta.Operator)
	}
	fmt.Println()

	fmt.Println("## Summary")
	if r.Summary == nil {
		fmt.Println("  (no baseline; summary unavailable)")
	} else {
		s := r.Summary
		fmt.Printf("  Added: %d  Modified: %d  Deleted: %d  Renamed: %d\n",
			s.FilesAdded, s.FilesModified, s.FilesDeleted, s.FilesRenamed)
		if r.Signal != nil {
			fmt.Printf("  Severity: %s  (kinds: %s)\n",
				r.Signal.Severity, strings.Join(r.Signal.AffectedKinds, ", "))
		}
		if len(s.HotFiles) > 0 {
			fmt.Println("  Hot files:")
			for _, h := range s.HotFiles {
				fmt.Printf("    %3d×  %s\n", h.TouchCount, h.Path)
			}
		}
	}
	fmt.Println()

	fmt.Println("## Changes")
	if len(r.Entries) == 0 {
		fmt.Println("  (none)")
	} else {
		for _, e := range r.Entries {
			text := e.Path
			if e.Op == ledger.OpRename {
				text = e.OldPath + " -> " + e.Path
			}
			if e.Op == ledger.OpRaw {
				text = e.EventType
				if note, ok := e.Payload["text"].(string); ok {
					text += ": " + note
				}
			}
			fmt.Printf("  [%s] %-7s %s\n", e.Timestamp.Format("15:04:05"), e.Op, text)
		}
	}
	fmt.Println()

	fmt.Println("## Integrity")
	if r.Verify.OK {
		fmt.Printf("  OK: %d record(s) verified, chain intact.\n", r.Verify.RecordsChecked)
	} else {
		fmt.Printf("  FAILED at line %d: %s (%d verified before failure)\n",
			r.Verify.FirstError.LineNumber, r.Verify.FirstError.Reason, r.Verify.RecordsChecked)
	}
	if r.SkippedLines > 0 {
		fmt.Printf("  %d unparseable line(s) skipped.\n", r.SkippedLines)
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
