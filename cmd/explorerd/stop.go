package main

import (
	"fmt"
	"os"

	"github.com/explorerd/explorerd/internal/session"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running session in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		found, err := session.StopExternal(cwd)
		if err != nil {
			return fmt.Errorf("stopping session: %w", err)
		}
		if !found {
			return fmt.Errorf("no session found under %s", cwd)
		}
		fmt.Println("stop signal sent")
		return nil
	},
}
