package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/explorerd/explorerd/internal/authstore"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored provider API keys",
}

var authSetCmd = &cobra.Command{
	Use:   "set <provider> <key>",
	Short: "Store a provider's API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(configDir, authstore.FileName)
		store, err := authstore.Load(path)
		if err != nil {
			return err
		}
		if err := store.Set(path, args[0], args[1]); err != nil {
			return fmt.Errorf("saving key: %w", err)
		}
		fmt.Printf("stored key for %s\n", args[0])
		return nil
	},
}

// authLoginCmd is an alias of `auth set` named the way operators expect a
// login verb to read, matching the teacher's practice of giving the same
// operation more than one spelling where the CLI UX calls for it.
var authLoginCmd = &cobra.Command{
	Use:   "login <provider> <key>",
	Short: "Alias for `auth set`",
	Args:  cobra.ExactArgs(2),
	RunE:  authSetCmd.RunE,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <provider>",
	Short: "Remove a stored provider API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(configDir, authstore.FileName)
		store, err := authstore.Load(path)
		if err != nil {
			return err
		}
		if err := store.Logout(path, args[0]); err != nil {
			return fmt.Errorf("removing key: %w", err)
		}
		fmt.Printf("removed key for %s\n", args[0])
		return nil
	},
}

// authListCmd prints stored provider keys (masked) in a table, matching
// the teacher's `ctrlai agents` tabular CLI output convention
// (cmd/ctrlai/main.go).
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored provider API keys (masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := authstore.Load(filepath.Join(configDir, authstore.FileName))
		if err != nil {
			return err
		}
		providers := make([]string, 0, len(store.Keys))
		for p := range store.Keys {
			providers = append(providers, p)
		}
		sort.Strings(providers)

		if len(providers) == 0 {
			fmt.Println("no stored keys")
			return nil
		}

		fmt.Printf("%-20s %s\n", "PROVIDER", "KEY")
		for _, p := range providers {
			fmt.Printf("%-20s %s\n", p, authstore.Mask(store.Keys[p]))
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(authSetCmd, authLoginCmd, authLogoutCmd, authListCmd)
}
