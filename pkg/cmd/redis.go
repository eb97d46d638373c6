package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zapfy/botflow/pkg/assign"
	"github.com/zapfy/botflow/pkg/lease"
)

// NewLeaseManager returns a Redis-backed lease manager when a Redis URL is
// configured, falling back to an in-process manager for single-node setups.
func NewLeaseManager(redisURL string) lease.Manager {
	if redisURL == "" {
		return lease.NewMemoryManager()
	}

	return lease.NewRedisManager(newRedisClient(redisURL))
}

// NewCursorStore returns the round-robin cursor store matching the lease
// manager topology.
func NewCursorStore(redisURL string) assign.CursorStore {
	if redisURL == "" {
		return assign.NewMemoryCursorStore()
	}

	return assign.NewRedisCursorStore(newRedisClient(redisURL))
}

func newRedisClient(redisURL string) redis.UniversalClient {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse Redis URL: %w", err))
	}

	return redis.NewClient(opts)
}
