package lease

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager shares leases across worker processes via SET NX PX.
type RedisManager struct {
	client redis.UniversalClient
}

func NewRedisManager(client redis.UniversalClient) *RedisManager {
	return &RedisManager{client: client}
}

func (m *RedisManager) Acquire(ctx context.Context, executionID, ownerID string, ttl time.Duration) error {
	ok, err := m.client.SetNX(ctx, leaseKey(executionID), ownerID, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lease for execution %s: %w", executionID, err)
	}

	if !ok {
		current, err := m.client.Get(ctx, leaseKey(executionID)).Result()
		if err == nil && current == ownerID {
			// Re-entrant acquire by the same owner extends the ttl.
			return m.client.PExpire(ctx, leaseKey(executionID), ttl).Err()
		}

		return ErrAlreadyLeased
	}

	return nil
}

func (m *RedisManager) Release(ctx context.Context, executionID, ownerID string) error {
	err := releaseScript.Run(ctx, m.client, []string{leaseKey(executionID)}, ownerID).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lease for execution %s: %w", executionID, err)
	}

	return nil
}

func leaseKey(executionID string) string {
	return "botflow:lease:" + executionID
}
