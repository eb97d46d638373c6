package timekeeper_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zapfy/botflow/pkg/clock"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/mocks"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
	"github.com/zapfy/botflow/pkg/persistence/file"
	"github.com/zapfy/botflow/pkg/timekeeper"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitingExecution(id string, kind models.WaitKind, until *time.Time) *models.Execution {
	return &models.Execution{
		ID:            id,
		WorkspaceID:   "ws-1",
		FlowID:        "flow-1",
		FlowVersion:   1,
		LeadID:        "lead-" + id,
		CurrentNodeID: "wait",
		Status:        models.ExecutionStatusWaiting,
		WaitKind:      kind,
		WaitUntil:     until,
		StepSequence:  4,
	}
}

func saveAll(t *testing.T, p persistence.Persistence, executions ...*models.Execution) {
	t.Helper()

	for _, execution := range executions {
		require.NoError(t, p.Executions().Save(context.Background(), execution))
	}
}

func TestTimekeeper_SweepPublishesDueDeadlines(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &mocks.MockPublisher{}
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	fakeClock := clock.NewFake(now)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	saveAll(t, p,
		waitingExecution("exec-due", models.WaitKindDeadline, &past),
		waitingExecution("exec-future", models.WaitKindDeadline, &future),
		waitingExecution("exec-message", models.WaitKindMessage, nil),
	)

	publisher.On("Publish", mock.Anything, "exec-due", mock.MatchedBy(func(event any) bool {
		timer, ok := event.(events.TimerElapsed)

		return ok && timer.ExecutionID == "exec-due" && timer.StepSequence == 4 && timer.DueAt.Equal(past)
	})).Return(nil)

	tk := timekeeper.NewTimekeeper(timekeeper.Config{}, p, publisher, fakeClock, testLogger())
	tk.Sweep(context.Background())

	publisher.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestTimekeeper_SweepHonorsBatchSize(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &mocks.MockPublisher{}
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	fakeClock := clock.NewFake(now)

	for i, id := range []string{"exec-a", "exec-b", "exec-c"} {
		due := now.Add(-time.Duration(i+1) * time.Minute)
		saveAll(t, p, waitingExecution(id, models.WaitKindDeadline, &due))
	}

	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	tk := timekeeper.NewTimekeeper(timekeeper.Config{BatchSize: 2}, p, publisher, fakeClock, testLogger())
	tk.Sweep(context.Background())

	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestTimekeeper_SweepWithNothingDueIsQuiet(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &mocks.MockPublisher{}
	fakeClock := clock.NewFake(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))

	tk := timekeeper.NewTimekeeper(timekeeper.Config{}, p, publisher, fakeClock, testLogger())
	tk.Sweep(context.Background())

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestTimekeeper_StartAndStop(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &mocks.MockPublisher{}

	tk := timekeeper.NewTimekeeper(timekeeper.Config{}, p, publisher, nil, testLogger())

	ctx := context.Background()
	require.NoError(t, tk.Start(ctx))
	require.NoError(t, tk.Start(ctx), "second start is a no-op")
	require.NoError(t, tk.Stop(ctx))
	require.NoError(t, tk.Stop(ctx), "second stop is a no-op")
}

func TestTimekeeper_StartRejectsBadSchedule(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &mocks.MockPublisher{}

	tk := timekeeper.NewTimekeeper(timekeeper.Config{Schedule: "not a cron"}, p, publisher, nil, testLogger())

	assert.Error(t, tk.Start(context.Background()))
}
