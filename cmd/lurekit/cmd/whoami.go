package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Validate the persisted session against the server and print the
user profile. Refreshes the token first when it is close to expiry.`,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.auth.Shutdown()

	if err := a.auth.CheckAuth(cmd.Context()); err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}

	sess := a.store.Get()
	if !sess.Authenticated() {
		return fmt.Errorf("not signed in; run \"lurekit login\" first")
	}
	return printResult(sess.User)
}
