package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// only the holder's token may delete the key
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is an advisory lock: SET NX PX with a random token, released by
// compare-and-delete. The TTL bounds how long a crashed holder blocks others.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

// Acquire does not wait; a held lock returns orders.ErrLockBusy.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, orders.ErrLockBusy
	}
	return func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}
