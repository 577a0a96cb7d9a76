package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/cmd"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/enrollment"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/log"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/suppression"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/web"
)

func main() {
	command := &cli.Command{
		Name:                  "barkbase-api",
		EnableShellCompletion: true,
		Usage:                 "Serve the workflow automation HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				Value:   "9091",
				Sources: cli.EnvVars("PORT"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("barkbase-api")

			logger.InfoContext(ctx, "Initializing API")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "barkbase-api", logger)
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

			records := cmd.NewRecordRegistry()
			materializer := record.NewMaterializer(records, logger)
			evaluator := condition.NewEvaluator(logger)
			checker := suppression.NewChecker(persistence, materializer, evaluator, logger)
			enrollments := enrollment.NewManager(persistence, checker, materializer, evaluator, eventBus, logger)

			validate := validator.New(validator.WithRequiredStructEnabled())
			handlers := web.NewAPIHandlers(persistence, enrollments, eventBus, validate, logger)

			app := fiber.New()
			handlers.RegisterRoutes(app)

			go func() {
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
				<-sigChan

				logger.InfoContext(ctx, "Shutting down API")

				if err := app.Shutdown(); err != nil {
					logger.ErrorContext(ctx, "Failed to shut down server", "error", err)
				}
			}()

			return app.Listen(":" + command.String("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
