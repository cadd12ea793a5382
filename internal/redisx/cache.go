package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// an entry is only replaced by one at least as recent
var setStatusScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "at")
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[1], "at", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1`)

// StatusCache is a read-through cache of order status for GET traffic. It is
// never consulted when deciding a transition. Entries are hashes of status
// and the order's updated_at in unix microseconds.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache { return &StatusCache{rdb: rdb} }

func (c *StatusCache) Get(ctx context.Context, orderID string) (string, bool) {
	s, err := c.rdb.HGet(ctx, fmt.Sprintf(KeyOrderStatus, orderID), "status").Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

// Set writes status unless the cached entry belongs to a later update, so a
// slow reader cannot put back a status a transition already replaced.
func (c *StatusCache) Set(ctx context.Context, orderID, status string, at time.Time) error {
	return setStatusScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf(KeyOrderStatus, orderID)},
		status, at.UnixMicro(), TTLStatusCache.Milliseconds(),
	).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
