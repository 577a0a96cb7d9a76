package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/cmd"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/log"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "barkbase-activator",
		EnableShellCompletion: true,
		Usage:                 "Run the standing-filter sweep and wake paused executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "activator-id",
				Aliases: []string{"id"},
				Usage:   "Custom activator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ACTIVATOR_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the resume-timer store (storage sweep only when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron expression for the standing-filter sweep",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			activatorID := command.String("activator-id")
			if activatorID == "" {
				activatorID = "activator-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("barkbase-activator").With("activator_id", activatorID)

			logger.InfoContext(ctx, "Initializing activator")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "barkbase-activator", logger)
			if err != nil {
				return fmt.Errorf("creating event bus: %w", err)
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("creating persistence: %w", err)
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var timers scheduler.Store

			if redisURL := command.String("redis-url"); redisURL != "" {
				client, err := cmd.NewRedisClient(ctx, redisURL)
				if err != nil {
					return fmt.Errorf("creating redis client: %w", err)
				}

				timers = scheduler.NewRedisStore(client)
			}

			activator := NewActivator(activatorID, persistence, eventBus, timers, logger)

			return activator.Start(ctx, command.String("sweep-schedule"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
