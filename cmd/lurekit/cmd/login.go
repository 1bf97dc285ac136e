package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginEmail     string
	loginPassword  string
	loginTwoFactor string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session token",
	Long: `Sign in to the platform with email and password.

On success the session token is written to the token file (default
$HOME/.lurekit/token) so later commands and the agent reuse it.

If the account has two-factor authentication enabled, pass the current
code with --two-factor.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginTwoFactor, "two-factor", "", "two-factor authentication code")
	_ = loginCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.auth.Shutdown()

	password := loginPassword
	if password == "" {
		password, err = promptSecret("Password: ")
		if err != nil {
			return err
		}
	}

	user, err := a.auth.Login(cmd.Context(), loginEmail, password, loginTwoFactor)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	a.logger.Info("signed in", "email", user.Email)
	return printResult(user)
}

// promptSecret reads one line from stdin after printing the prompt to
// stderr. Echo is not suppressed; prefer --password in scripts.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
