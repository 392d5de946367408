package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
)

const (
	revokedKeyPrefix = "tg:revoked:"
	usageKeyPrefix   = "tg:usage:"
)

// RedisRevocationList shares the revocation set across instances.
// Production-recommended for distributed deployments.
type RedisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList constructs a Redis-backed revocation list.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke adds a session id to the revocation list with TTL.
// Uses SETEX for atomic set-with-expiry; key existence is what matters.
func (l *RedisRevocationList) Revoke(ctx context.Context, sessionID id.SessionID, ttl time.Duration) error {
	return l.client.Set(ctx, revokedKeyPrefix+sessionID.String(), "1", ttl).Err()
}

// IsRevoked checks membership; a missing key means not revoked (or lapsed).
func (l *RedisRevocationList) IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	_, err := l.client.Get(ctx, revokedKeyPrefix+sessionID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// consumeScript checks both budgets and commits the use in one atomic step.
// KEYS[1] = usage hash, ARGV = cost, maxRequests, maxCost, ttlSeconds.
// Returns {1, requests} on success, {0, requests} when a budget is exhausted.
var consumeScript = redis.NewScript(`
local requests = tonumber(redis.call('HGET', KEYS[1], 'requests') or '0')
local cost = tonumber(redis.call('HGET', KEYS[1], 'cost') or '0')
local addCost = tonumber(ARGV[1])
local maxRequests = tonumber(ARGV[2])
local maxCost = tonumber(ARGV[3])
if requests + 1 > maxRequests then
	return {0, requests}
end
if maxCost > 0 and cost + addCost > maxCost then
	return {0, requests}
end
redis.call('HSET', KEYS[1], 'requests', requests + 1, 'cost', cost + addCost)
redis.call('EXPIRE', KEYS[1], ARGV[4], 'NX')
return {1, requests + 1}
`)

// RedisUsageStore tracks per-credential consumption in Redis.
type RedisUsageStore struct {
	client *redis.Client
}

// NewRedisUsageStore constructs a Redis-backed usage store.
func NewRedisUsageStore(client *redis.Client) *RedisUsageStore {
	return &RedisUsageStore{client: client}
}

// Consume runs the check-and-commit script.
func (s *RedisUsageStore) Consume(ctx context.Context, sessionID id.SessionID, cost float64, maxRequests int, maxCost float64, ttl time.Duration) (int, error) {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{usageKeyPrefix + sessionID.String()},
		cost, maxRequests, maxCost, int(ttl.Seconds()),
	).Int64Slice()
	if err != nil {
		return 0, err
	}
	requests := int(res[1])
	if res[0] == 0 {
		return requests, sentinel.ErrExhausted
	}
	return requests, nil
}
