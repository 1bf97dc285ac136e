package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lurekit/lurekit/internal/adapter/outbound/api"
	"github.com/lurekit/lurekit/internal/adapter/outbound/tokenfile"
	"github.com/lurekit/lurekit/internal/config"
	"github.com/lurekit/lurekit/internal/domain/session"
	"github.com/lurekit/lurekit/internal/service"
)

// app bundles the wired components every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *session.Store
	client *api.Client
	auth   *service.AuthService
}

// loadApp loads configuration and wires the client stack: token file,
// session store (seeded from disk), API client, and auth service.
func loadApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	if file := config.ConfigFileUsed(); file != "" {
		logger.Debug("loaded config", "file", file)
	}

	tokenPath := cfg.Session.TokenFile
	if tokenPath == "" {
		tokenPath = tokenfile.DefaultPath()
	}
	persister := tokenfile.NewStore(tokenPath, logger)

	store := session.NewStore(persister, logger)
	if err := store.Seed(); err != nil {
		return nil, fmt.Errorf("failed to load persisted token: %w", err)
	}

	client := api.NewClient(
		api.WithBaseURL(cfg.Server.Addr),
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithCacheTTL(cfg.CampaignCacheTTL()),
		api.WithLogger(logger),
	)

	auth := service.NewAuthService(client, store, cfg.RefreshLead(), logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		client: client,
		auth:   auth,
	}, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
