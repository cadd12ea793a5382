package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// PushDirectory keeps push endpoints in one Redis hash keyed by user.
type PushDirectory struct {
	rdb *redis.Client
}

func NewPushDirectory(rdb *redis.Client) *PushDirectory { return &PushDirectory{rdb: rdb} }

// PushEndpoint returns "" when the user never registered one.
func (d *PushDirectory) PushEndpoint(ctx context.Context, userID string) (string, error) {
	ep, err := d.rdb.HGet(ctx, KeyPushEndpoints, userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return ep, err
}

func (d *PushDirectory) SetPushEndpoint(ctx context.Context, userID, endpoint string) error {
	if endpoint == "" {
		return d.rdb.HDel(ctx, KeyPushEndpoints, userID).Err()
	}
	return d.rdb.HSet(ctx, KeyPushEndpoints, userID, endpoint).Err()
}
