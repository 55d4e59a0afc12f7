package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

const (
	activePolicyKey      = "ledger:fee_policy:active"
	activePolicyStampKey = "ledger:fee_policy:active:activated_us"
)

// setNewerScript writes the policy unless a later activation was already
// cached. The stamp outlives invalidation so a slow reader cannot restore a
// superseded version.
var setNewerScript = redis.NewScript(`
local seen = redis.call("GET", KEYS[2])
if seen and tonumber(seen) > tonumber(ARGV[2]) then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
	redis.call("SET", KEYS[2], ARGV[2], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[1])
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

// RedisPolicyCache shares the active fee policy across API replicas.
type RedisPolicyCache struct {
	client *redis.Client
}

func NewRedisPolicyCache(client *redis.Client) *RedisPolicyCache {
	return &RedisPolicyCache{client: client}
}

func (c *RedisPolicyCache) GetActivePolicy(ctx context.Context) (*domain.FeePolicy, error) {
	raw, err := c.client.Get(ctx, activePolicyKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var policy domain.FeePolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		// A stale encoding is treated as a miss and overwritten on the next set.
		_ = c.client.Del(ctx, activePolicyKey).Err()
		return nil, nil
	}
	return &policy, nil
}

func (c *RedisPolicyCache) SetActivePolicy(ctx context.Context, policy domain.FeePolicy, ttl time.Duration) error {
	raw, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	var stamp int64
	if policy.ActivatedAt != nil {
		stamp = policy.ActivatedAt.UnixMicro()
	}
	return setNewerScript.Run(ctx, c.client,
		[]string{activePolicyKey, activePolicyStampKey},
		string(raw), stamp, ttl.Milliseconds(),
	).Err()
}

func (c *RedisPolicyCache) InvalidateActivePolicy(ctx context.Context) error {
	return c.client.Del(ctx, activePolicyKey).Err()
}
