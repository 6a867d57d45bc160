package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	outstandingPrefix = "rt:out:"
	blacklistPrefix   = "rt:bl:"
)

// revokeScript blacklists KEYS[1] unless it already is, and drops the
// outstanding record KEYS[2] in the same step. Returns 1 on first revoke.
var revokeScript = redis.NewScript(`
if redis.call("SET", KEYS[1], 1, "NX", "PX", ARGV[1]) then
	redis.call("DEL", KEYS[2])
	return 1
end
return 0
`)

type RedisTokenRepo struct {
	client redis.UniversalClient
}

func NewRedisTokenRepo(client redis.UniversalClient) *RedisTokenRepo {
	return &RedisTokenRepo{
		client: client,
	}
}

// Store records an issued refresh token under rt:out: until it expires. The
// record is bookkeeping for operators; token checks only read the blacklist.
func (r *RedisTokenRepo) Store(ctx context.Context, jti string, exp time.Time) error {
	return r.client.Set(ctx, outstandingPrefix+jti, exp.Unix(), safeTTL(exp)).Err()
}

// Revoke blacklists jti; false means it was already blacklisted.
func (r *RedisTokenRepo) Revoke(ctx context.Context, jti string, exp time.Time) (bool, error) {
	n, err := revokeScript.Run(ctx, r.client,
		[]string{blacklistPrefix + jti, outstandingPrefix + jti},
		safeTTL(exp).Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		// treat as revoked, the caller gets the error as well
		return true, err
	}
	return n > 0, nil
}

func safeTTL(exp time.Time) time.Duration {
	ttl := time.Until(exp)
	if ttl <= 0 {
		// keep the key around for a while so late retries still see it
		return time.Hour
	}
	return ttl
}
