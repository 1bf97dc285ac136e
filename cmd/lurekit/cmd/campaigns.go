package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "List and inspect phishing campaigns",
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all campaigns",
	RunE:  runCampaignsList,
}

var campaignsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignsGet,
}

var campaignsStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show result counters for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignsStats,
}

func init() {
	campaignsCmd.AddCommand(campaignsListCmd)
	campaignsCmd.AddCommand(campaignsGetCmd)
	campaignsCmd.AddCommand(campaignsStatsCmd)
	rootCmd.AddCommand(campaignsCmd)
}

// authedApp wires the app and ensures a live session before any
// campaign read.
func authedApp(cmd *cobra.Command) (*app, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	if err := a.auth.CheckAuth(cmd.Context()); err != nil {
		return nil, fmt.Errorf("session check failed: %w", err)
	}
	if !a.store.Get().Authenticated() {
		return nil, fmt.Errorf("not signed in; run \"lurekit login\" first")
	}
	return a, nil
}

func runCampaignsList(cmd *cobra.Command, args []string) error {
	a, err := authedApp(cmd)
	if err != nil {
		return err
	}
	defer a.auth.Shutdown()

	campaigns, err := a.client.ListCampaigns(cmd.Context(), a.store.Token())
	if err != nil {
		return fmt.Errorf("failed to list campaigns: %w", err)
	}
	return printResult(campaigns)
}

func runCampaignsGet(cmd *cobra.Command, args []string) error {
	id, err := parseCampaignID(args[0])
	if err != nil {
		return err
	}
	a, err := authedApp(cmd)
	if err != nil {
		return err
	}
	defer a.auth.Shutdown()

	c, err := a.client.Campaign(cmd.Context(), a.store.Token(), id)
	if err != nil {
		return fmt.Errorf("failed to fetch campaign %d: %w", id, err)
	}
	return printResult(c)
}

func runCampaignsStats(cmd *cobra.Command, args []string) error {
	id, err := parseCampaignID(args[0])
	if err != nil {
		return err
	}
	a, err := authedApp(cmd)
	if err != nil {
		return err
	}
	defer a.auth.Shutdown()

	stats, err := a.client.CampaignStats(cmd.Context(), a.store.Token(), id)
	if err != nil {
		return fmt.Errorf("failed to fetch stats for campaign %d: %w", id, err)
	}
	return printResult(stats)
}

func parseCampaignID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid campaign id %q", arg)
	}
	return id, nil
}
