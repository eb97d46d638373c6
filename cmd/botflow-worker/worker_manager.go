package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zapfy/botflow/pkg/eventbus"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/interpreter"
)

// WorkerManager subscribes the engine to the dispatch topic and blocks
// until the process is signalled.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	engine   *interpreter.Engine
	eventBus eventbus.EventBus
}

func NewWorkerManager(
	id string,
	engine *interpreter.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "botflow-worker", "worker_id", id),
		engine:   engine,
		eventBus: eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	handlers := map[events.EventType]eventbus.EventHandler{
		events.FlowEntryEvent:       w.engine.HandleFlowEntry,
		events.MessageReceivedEvent: w.engine.HandleMessageReceived,
		events.TimerElapsedEvent:    w.engine.HandleTimerElapsed,
		events.ManualAdvanceEvent:   w.engine.HandleManualAdvance,
	}

	for eventType, handler := range handlers {
		if err := w.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}
