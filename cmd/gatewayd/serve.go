package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/svarun115/assistant-gateway/internal/artifacts"
	"github.com/svarun115/assistant-gateway/internal/bridge"
	"github.com/svarun115/assistant-gateway/internal/config"
	"github.com/svarun115/assistant-gateway/internal/gateway"
	"github.com/svarun115/assistant-gateway/internal/graphexec"
	"github.com/svarun115/assistant-gateway/internal/notify"
	"github.com/svarun115/assistant-gateway/internal/registry"
	"github.com/svarun115/assistant-gateway/internal/scheduler"
	"github.com/svarun115/assistant-gateway/internal/spawner"
	"github.com/svarun115/assistant-gateway/internal/store/pg"
	"github.com/svarun115/assistant-gateway/internal/threads"
	"github.com/svarun115/assistant-gateway/internal/vault"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the gateway: registry seeder, scheduler, notification fan-out, HTTP/WS listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.PostgresDSN == "" {
		return errors.New("GATEWAY_POSTGRES_DSN environment variable is not set")
	}

	stores, err := pg.NewStores(cfg.Database.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect stores: %w", err)
	}

	v, err := vault.New(stores.Credentials, cfg.Vault)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	bridgeMgr := bridge.NewManager(cfg.BridgeServers(), v)
	resolver := registry.NewResolver(stores.Registry, cfg.Registry.SystemAgentsDir)
	notifier := notify.New(stores.Notifications)
	artifactStore := artifacts.New(stores.Artifacts)
	threadMgr := threads.NewManager(stores.Threads)

	graphs := graphexec.Factory(func(ctx context.Context, opts graphexec.Options) (graphexec.Graph, error) {
		return nil, errors.New("no graph executor wired: this deployment must supply a graphexec.Factory (the conversation graph itself is outside this gateway's scope)")
	})

	sp := spawner.New(graphs, bridgeMgr, threadMgr, notifier, artifactStore, resolver)

	sch := scheduler.New(stores.Schedules, nil, cfg.PollInterval())
	sch.SetCallback(func(ctx context.Context, userID, agentName, skill string, schedConfig map[string]any) {
		sp.SpawnBackground(ctx, spawner.BackgroundOptions{
			UserID: userID, AgentName: agentName, Skill: skill, Config: schedConfig,
		})
	})

	seeder := registry.NewSeeder(cfg.Registry.AgentsDir, stores.Registry)
	if summary, err := seeder.Sync(ctx); err != nil {
		slog.Warn("gatewayd.seed_failed", "error", err)
	} else {
		slog.Info("gatewayd.seeded", "agents", len(summary))
	}

	sch.Start(ctx)
	defer sch.Stop()

	srv := gateway.NewServer(cfg, resolver, sp, sch, artifactStore, notifier)

	serveCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Start(serveCtx)
}
