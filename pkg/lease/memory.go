package lease

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	owner     string
	expiresAt time.Time
}

// MemoryManager is an in-process lease manager for tests and
// single-worker deployments.
type MemoryManager struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{leases: make(map[string]memoryEntry)}
}

func (m *MemoryManager) Acquire(_ context.Context, executionID, ownerID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	if entry, held := m.leases[executionID]; held && entry.owner != ownerID && entry.expiresAt.After(now) {
		return ErrAlreadyLeased
	}

	m.leases[executionID] = memoryEntry{owner: ownerID, expiresAt: now.Add(ttl)}

	return nil
}

func (m *MemoryManager) Release(_ context.Context, executionID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, held := m.leases[executionID]; held && entry.owner == ownerID {
		delete(m.leases, executionID)
	}

	return nil
}
