package assign

import (
	"context"
	"sync"
)

// MemoryCursorStore keeps rotation cursors in process memory. Suitable
// for tests and single-process deployments.
type MemoryCursorStore struct {
	mu   sync.Mutex
	last map[string]string // workspace id -> last assigned user id
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{last: make(map[string]string)}
}

func (s *MemoryCursorStore) Advance(_ context.Context, workspaceID string, eligible []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := nextAfter(eligible, s.last[workspaceID])
	s.last[workspaceID] = next

	return next, nil
}

// nextAfter returns the member following last in the eligible list,
// wrapping to the first entry when last is at the end or unknown.
func nextAfter(eligible []string, last string) string {
	if last == "" {
		return eligible[0]
	}

	for i, userID := range eligible {
		if userID == last {
			return eligible[(i+1)%len(eligible)]
		}
	}

	// Last assignee left the workspace; restart the rotation.
	return eligible[0]
}
