package assign

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// advanceScript performs the read-modify-write of the rotation cursor
// server-side so concurrent resolutions for the same workspace are
// serialized by Redis.
var advanceScript = redis.NewScript(`
local last = redis.call("GET", KEYS[1])
local pick = ARGV[1]
if last then
	for i = 1, #ARGV do
		if ARGV[i] == last then
			if i == #ARGV then
				pick = ARGV[1]
			else
				pick = ARGV[i + 1]
			end
			break
		end
	end
end
redis.call("SET", KEYS[1], pick)
return pick
`)

// RedisCursorStore shares the rotation cursor across worker processes.
type RedisCursorStore struct {
	client redis.UniversalClient
}

func NewRedisCursorStore(client redis.UniversalClient) *RedisCursorStore {
	return &RedisCursorStore{client: client}
}

func (s *RedisCursorStore) Advance(ctx context.Context, workspaceID string, eligible []string) (string, error) {
	args := make([]any, len(eligible))
	for i, userID := range eligible {
		args[i] = userID
	}

	pick, err := advanceScript.Run(ctx, s.client, []string{cursorKey(workspaceID)}, args...).Text()
	if err != nil {
		return "", fmt.Errorf("advance rotation cursor for workspace %s: %w", workspaceID, err)
	}

	return pick, nil
}

func cursorKey(workspaceID string) string {
	return "botflow:rotation:" + workspaceID
}
