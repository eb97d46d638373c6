// Package lease enforces the single-writer discipline on executions:
// exactly one worker may hold an execution in running processing at a
// time. Acquisition failure means the dispatch must be requeued, not
// blocked.
package lease

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyLeased reports that another worker currently holds the
// execution.
var ErrAlreadyLeased = errors.New("execution already leased")

// Manager grants per-execution leases.
type Manager interface {
	// Acquire takes the lease for executionID on behalf of ownerID for
	// at most ttl. Returns ErrAlreadyLeased when held elsewhere.
	Acquire(ctx context.Context, executionID, ownerID string, ttl time.Duration) error

	// Release gives the lease back. Releasing a lease owned by someone
	// else is a no-op.
	Release(ctx context.Context, executionID, ownerID string) error
}
