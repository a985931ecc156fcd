package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/explorerd/explorerd/internal/session"
	"github.com/spf13/cobra"
)

// sessionsCmd lists local sessions newest first (SPEC_FULL.md §10), the
// supplement that makes session.List explicit and resumable by id instead
// of only ever resuming the newest one.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions under the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		metas, err := session.List(cwd)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(metas) == 0 {
			fmt.Println("no sessions found")
			return nil
		}

		fmt.Printf("%-10s %-8s %-20s %s\n", "ID", "DEPTH", "MODEL", "STARTED")
		for _, m := range metas {
			fmt.Printf("%-10s %-8s %-20s %s\n", m.ID, m.Depth, m.Model, humanize.Time(m.Timestamp))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
