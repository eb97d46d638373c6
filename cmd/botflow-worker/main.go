package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/zapfy/botflow/pkg/assign"
	"github.com/zapfy/botflow/pkg/clients/zapfy"
	"github.com/zapfy/botflow/pkg/clock"
	"github.com/zapfy/botflow/pkg/cmd"
	"github.com/zapfy/botflow/pkg/interpreter"
	"github.com/zapfy/botflow/pkg/log"
	"github.com/zapfy/botflow/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "botflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute sales flows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for leases and round-robin cursors (in-process fallback if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "zapfy-api-url",
				Usage:    "Base URL of the Zapfy platform API",
				Required: true,
				Sources:  cli.EnvVars("ZAPFY_API_URL"),
			},
			&cli.StringFlag{
				Name:    "zapfy-api-key",
				Usage:   "API key for the Zapfy platform API",
				Value:   "",
				Sources: cli.EnvVars("ZAPFY_API_KEY"),
			},
			&cli.IntFlag{
				Name:    "max-jumps",
				Usage:   "Jump limit per execution before it fails",
				Value:   interpreter.DefaultMaxJumps,
				Sources: cli.EnvVars("MAX_JUMPS"),
			},
			&cli.DurationFlag{
				Name:    "lease-ttl",
				Usage:   "Execution lease time-to-live",
				Value:   interpreter.DefaultLeaseTTL,
				Sources: cli.EnvVars("LEASE_TTL"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("botflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Botflow Worker")

			tracer, err := otelhelper.NewTracer(ctx, "botflow-worker")
			if err != nil {
				logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)

				return err
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			redisURL := command.String("redis-url")
			platform := zapfy.NewClient(command.String("zapfy-api-url"), command.String("zapfy-api-key"), logger)

			engine := interpreter.NewEngine(
				interpreter.Config{
					WorkerID: workerID,
					MaxJumps: command.Int("max-jumps"),
					LeaseTTL: command.Duration("lease-ttl"),
				},
				interpreter.Dependencies{
					Persistence: persistence,
					Leases:      cmd.NewLeaseManager(redisURL),
					Resolver:    assign.NewResolver(cmd.NewCursorStore(redisURL)),
					Messenger:   platform,
					CRM:         platform,
					Publisher:   eventBus,
					Clock:       clock.System{},
					Logger:      logger,
					Tracer:      tracer,
				},
			)

			worker := NewWorkerManager(workerID, engine, eventBus, logger)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
