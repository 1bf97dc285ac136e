package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lurekit/lurekit/internal/adapter/inbound/status"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run long-lived, keeping the token fresh",
	Long: `Run LureKit as a long-lived agent.

The agent validates the persisted session on start, then refreshes the
token in the background shortly before every expiry so other tools can
read a valid token from the token file at any time.

With status.enabled it also serves /healthz and /metrics on a local
listener (default 127.0.0.1:9464).`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	// Signal context for graceful shutdown. stop() restores default
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	reg := prometheus.NewRegistry()
	metrics := status.NewMetrics(reg)
	a.auth.SetRefreshObserver(metrics.ObserveRefresh)
	a.store.Subscribe(metrics.TrackSession)
	metrics.TrackSession(a.store.Get())

	if err := a.auth.CheckAuth(ctx); err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}
	if !a.store.Get().Authenticated() {
		return fmt.Errorf("not signed in; run \"lurekit login\" first")
	}
	defer a.auth.Shutdown()
	a.logger.Info("agent running", "user", a.store.Get().User.Email)

	var srvErr <-chan error
	var srv *status.Server
	if a.cfg.Status.Enabled {
		srv = status.NewServer(a.cfg.Status.Addr, reg, a.store, a.logger)
		srvErr = srv.Start()
	}

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("status server shutdown failed", "error", err)
		}
	}

	a.logger.Info("agent stopped")
	return nil
}
