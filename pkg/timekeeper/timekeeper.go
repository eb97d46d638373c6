// Package timekeeper sweeps waiting executions whose deadline passed
// and republishes them to the workers as timer events.
package timekeeper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/zapfy/botflow/pkg/clock"
	"github.com/zapfy/botflow/pkg/eventbus"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/persistence"
)

const (
	// DefaultSchedule sweeps once per minute, the resolution of timer waits.
	DefaultSchedule = "* * * * *"

	// DefaultBatchSize bounds a single sweep. Executions left over stay
	// due and are picked up by the next tick.
	DefaultBatchSize = 500
)

type Config struct {
	Schedule  string
	BatchSize int
}

type Timekeeper struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	clock       clock.Clock
	logger      *slog.Logger
	schedule    string
	batchSize   int

	cron    *cron.Cron
	mu      sync.Mutex
	started bool
}

func NewTimekeeper(
	cfg Config,
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *Timekeeper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if clk == nil {
		clk = clock.System{}
	}

	return &Timekeeper{
		persistence: p,
		publisher:   publisher,
		clock:       clk,
		logger:      logger.With("module", "timekeeper"),
		schedule:    cfg.Schedule,
		batchSize:   cfg.BatchSize,
	}
}

// Start schedules the periodic sweep. The first sweep runs on the next
// cron boundary, not immediately.
func (t *Timekeeper) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}

	t.cron = cron.New()

	_, err := t.cron.AddFunc(t.schedule, func() {
		t.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	t.cron.Start()
	t.started = true

	t.logger.InfoContext(ctx, "Timekeeper started", "schedule", t.schedule, "batch_size", t.batchSize)

	return nil
}

// Stop halts the cron scheduler and waits for an in-flight sweep to finish.
func (t *Timekeeper) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return nil
	}

	stopCtx := t.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	t.started = false
	t.logger.InfoContext(ctx, "Timekeeper stopped")

	return nil
}

// Sweep publishes a timer event for every waiting execution whose
// deadline has passed. Publishing is at-least-once: the worker drops
// events whose step sequence no longer matches the execution.
func (t *Timekeeper) Sweep(ctx context.Context) {
	now := t.clock.Now().UTC()

	due, err := t.persistence.Executions().DueDeadlines(ctx, now, t.batchSize)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to query due deadlines", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	published := 0

	for _, execution := range due {
		event := events.TimerElapsed{
			BaseEvent:    events.NewBaseEvent(events.TimerElapsedEvent, execution.WorkspaceID),
			ExecutionID:  execution.ID,
			StepSequence: execution.StepSequence,
			DueAt:        *execution.WaitUntil,
		}

		if err := t.publisher.Publish(ctx, execution.ID, event); err != nil {
			t.logger.ErrorContext(ctx, "Failed to publish timer event",
				"execution_id", execution.ID, "error", err)

			continue
		}

		published++
	}

	t.logger.DebugContext(ctx, "Deadline sweep finished", "due", len(due), "published", published)
}
