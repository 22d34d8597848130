package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoClient is returned when a token operation needs Redis but none is configured.
var ErrNoClient = errors.New("redis client is not configured")

// RevokeToken stores jti on the denylist until the token would have expired.
func RevokeToken(ctx context.Context, rdb *redis.Client, jti string, remaining time.Duration) error {
	if rdb == nil {
		return ErrNoClient
	}
	if remaining <= 0 {
		return nil
	}
	return rdb.Set(ctx, RevokedTokenKey(jti), "1", remaining).Err()
}

// IsTokenRevoked reports whether jti is on the denylist.
func IsTokenRevoked(ctx context.Context, rdb *redis.Client, jti string) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	n, err := rdb.Exists(ctx, RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
