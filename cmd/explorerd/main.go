// Command explorerd is the CLI driver that wires the engine core to a
// concrete agent runtime, markdown renderer, and HTTP server, and exposes
// the operator-facing surface of spec.md §6: start, resume, stop, auth,
// and shell completion.
//
// Grounded on the teacher's cmd/ctrlai/main.go: a cobra command tree rooted
// at a single binary, a persistent --config-dir flag defaulting under the
// user's home directory, and a startup sequence that loads config, wires
// the long-lived components, and installs a signal-driven graceful
// shutdown before blocking.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// configDir is resolved once in rootCmd's PersistentPreRunE and consulted
// by every subcommand for config.yaml, models.yaml, and auth.yaml.
var configDir string

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".explorerd"
	}
	return filepath.Join(home, ".explorerd")
}

var rootCmd = &cobra.Command{
	Use:     "explorerd",
	Short:   "Run and drive an AI exploration agent against a codebase",
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configDir == "" {
			configDir = defaultConfigDir()
		}
		return os.MkdirAll(configDir, 0o755)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory for config.yaml, models.yaml, auth.yaml (default ~/.explorerd)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(completionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
