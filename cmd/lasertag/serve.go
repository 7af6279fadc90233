package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lasertag/internal/config"
	"github.com/cory-johannsen/lasertag/internal/frontend/handlers"
	"github.com/cory-johannsen/lasertag/internal/frontend/websocket"
	"github.com/cory-johannsen/lasertag/internal/game/scoring"
	"github.com/cory-johannsen/lasertag/internal/game/session"
	"github.com/cory-johannsen/lasertag/internal/gameserver"
	"github.com/cory-johannsen/lasertag/internal/observability"
	"github.com/cory-johannsen/lasertag/internal/server"
)

func runServe(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	start := time.Now()

	cfg, err := loadConfig(cmd, v, cfgFile)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	lifecycle, err := buildServer(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("building server", zap.Error(err))
		return err
	}

	logger.Info("lasertag server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("ws_addr", cfg.Server.Addr()),
		zap.String("ws_path", cfg.Server.WSPath),
	)
	return lifecycle.Run(cmd.Context())
}

// buildServer wires the registry, dispatcher, acceptor, and health endpoint
// into a Lifecycle.
func buildServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server.Lifecycle, error) {
	rules := scoring.DefaultRules()
	if cfg.Game.RulesFile != "" {
		loaded, err := scoring.LoadRules(cfg.Game.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading scoring rules: %w", err)
		}
		rules = loaded
		logger.Info("scoring rules loaded", zap.String("path", cfg.Game.RulesFile))
	}

	ctx, cancel := context.WithCancel(ctx)
	registry := session.NewRegistry(ctx, session.RegistryOptions{
		Rules: session.Rules{
			Duration:     cfg.Game.Duration,
			TickInterval: cfg.Game.TickInterval,
			Scoring:      rules,
		},
		CodeLength: cfg.Game.CodeLength,
	}, logger)

	conns := gameserver.NewDirectory()
	dispatcher := gameserver.NewDispatcher(registry, conns, cfg.Transport.SendBuffer, logger)
	acceptor := websocket.NewAcceptor(cfg.Server, cfg.Transport, handlers.NewGameHandler(dispatcher, logger), logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("registry", &server.FuncService{
		StartFn: func() error {
			<-ctx.Done()
			return nil
		},
		StopFn: func() {
			registry.Close()
			cancel()
		},
	})
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})
	if cfg.Health.Enabled {
		health := server.NewHealthServer(cfg.Health, logger)
		lifecycle.Add("health", health)
	}
	return lifecycle, nil
}
