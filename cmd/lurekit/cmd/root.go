// Package cmd provides the CLI commands for LureKit.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lurekit/lurekit/internal/config"
)

var cfgFile string
var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "lurekit",
	Short: "LureKit - security awareness platform client",
	Long: `LureKit is a command line client for the LureKit security awareness
training platform. It authenticates against the platform API, keeps the
session token fresh in the background, and exposes campaign data.

Quick start:
  1. Point it at your platform: export LUREKIT_SERVER_ADDR=https://admin.example.com/api
  2. Sign in: lurekit login --email you@example.com
  3. Inspect campaigns: lurekit campaigns list

Configuration:
  Config is loaded from lurekit.yaml in the current directory,
  $HOME/.lurekit/, or /etc/lurekit/.

  Environment variables can override config values with the LUREKIT_ prefix.
  Example: LUREKIT_SESSION_REFRESH_LEAD=10m

Commands:
  login       Sign in and persist the session token
  register    Create an account and sign in
  logout      End the session locally and on the server
  whoami      Show the signed-in user
  campaigns   List and inspect phishing campaigns
  agent       Run long-lived, keeping the token fresh
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./lurekit.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
}

func initConfig() {
	config.InitViper(cfgFile)
}
