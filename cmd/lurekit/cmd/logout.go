package cmd

import (
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session locally and on the server",
	Long: `Remove the persisted session token and notify the server.

Logout always succeeds locally: when the server cannot be reached the
token file is still removed.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	a.auth.Logout(cmd.Context())
	a.logger.Info("signed out")
	return nil
}
