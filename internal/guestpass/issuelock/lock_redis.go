package issuelock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gatepass/pkg/platform/sentinel"
)

const keyPrefix = "gatepass:issue-lock:"

// releaseScript deletes the key only while it still holds this acquire's
// token, so a holder whose TTL already lapsed cannot free a successor's lock.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// RedisLock serializes issuance across instances with SETNX + TTL. The TTL
// bounds how long a crashed holder can wedge a user's issuance.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) (*RedisLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisLock{client: client}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire issue lock: %v", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, sentinel.ErrConflict
	}

	release := func() {
		// Best effort; the TTL reclaims the key if this fails.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}
	return release, nil
}
