package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	registerEmail    string
	registerPassword string
	registerName     string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email (required)")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.auth.Shutdown()

	password := registerPassword
	if password == "" {
		password, err = promptSecret("Password: ")
		if err != nil {
			return err
		}
	}

	user, err := a.auth.Register(cmd.Context(), registerEmail, password, registerName)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	a.logger.Info("account created", "email", user.Email)
	return printResult(user)
}
