package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/svarun115/assistant-gateway/internal/config"
	"github.com/svarun115/assistant-gateway/internal/scheduler"
	"github.com/svarun115/assistant-gateway/internal/store/pg"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "scheduler operational visibility",
	}
	cmd.AddCommand(cronStatusCmd())
	return cmd
}

func cronStatusCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "list active schedules for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

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

			sch := scheduler.New(stores.Schedules, nil, cfg.PollInterval())
			list, err := sch.ListSchedules(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("list schedules: %w", err)
			}

			if len(list) == 0 {
				fmt.Println("no active schedules")
				return nil
			}
			for _, e := range list {
				fmt.Printf("%-36s %-20s %-20s %-15s next_run=%s\n", e.ID, e.AgentName, e.Skill, e.Cron, e.NextRun.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to list schedules for")
	return cmd
}
