package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/svarun115/assistant-gateway/internal/config"
	"github.com/svarun115/assistant-gateway/internal/registry"
	"github.com/svarun115/assistant-gateway/internal/store/pg"
)

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "agent registry maintenance",
	}
	cmd.AddCommand(registrySyncCmd())
	return cmd
}

func registrySyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "re-read the agents directory and upsert changed templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Database.PostgresDSN == "" {
				return fmt.Errorf("GATEWAY_POSTGRES_DSN environment variable is not set")
			}

			stores, err := pg.NewStores(cfg.Database.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect stores: %w", err)
			}

			seeder := registry.NewSeeder(cfg.Registry.AgentsDir, stores.Registry)
			summary, err := seeder.Sync(context.Background())
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			for name, status := range summary {
				fmt.Printf("%-30s %s\n", name, status)
			}
			fmt.Printf("\n%d agent(s) processed\n", len(summary))
			return nil
		},
	}
}
