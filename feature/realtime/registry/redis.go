package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// bindScript moves the connection to its (possibly new) owner and refreshes its expiry.
// KEYS: conn key, owner hash, expiry zset, user set. ARGV: conn id, user id, ttl ms,
// expires at ms, key prefix.
var bindScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[2], ARGV[1])
if old and old ~= ARGV[2] then
  redis.call('SREM', ARGV[5] .. ':user:' .. old .. ':conns', ARGV[1])
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('SADD', KEYS[4], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
return 1
`)

// unbindScript removes every trace of the connection and returns its owner, or false.
// With a deadline it leaves connections refreshed past it alone.
// KEYS: conn key, owner hash, expiry zset. ARGV: conn id, key prefix, optional deadline ms.
var unbindScript = redis.NewScript(`
local deadline = ARGV[3] and tonumber(ARGV[3])
if deadline then
  local score = redis.call('ZSCORE', KEYS[3], ARGV[1])
  if score and tonumber(score) > deadline then
    return false
  end
end
local owner = redis.call('HGET', KEYS[2], ARGV[1])
redis.call('DEL', KEYS[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
if owner then
  redis.call('SREM', ARGV[2] .. ':user:' .. owner .. ':conns', ARGV[1])
  return owner
end
return false
`)

// RedisRegistry shares bindings between gateway instances. The connection key carries
// the TTL; an owner hash and an expiry sorted set let Sweep clean up after it expired.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	hooks []ExpireFunc
}

// NewRedisRegistry creates a registry under prefix whose bindings live for ttl.
func NewRedisRegistry(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisRegistry) connKey(connID string) string {
	return r.prefix + ":conn:" + connID
}

func (r *RedisRegistry) userKey(userID string) string {
	return r.prefix + ":user:" + userID + ":conns"
}

func (r *RedisRegistry) ownerKey() string {
	return r.prefix + ":conn_owner"
}

func (r *RedisRegistry) expiryKey() string {
	return r.prefix + ":conn_expiry"
}

func (r *RedisRegistry) Bind(ctx context.Context, connID, userID string) error {
	expiresAt := r.now().Add(r.ttl).UnixMilli()
	keys := []string{r.connKey(connID), r.ownerKey(), r.expiryKey(), r.userKey(userID)}
	if err := bindScript.Run(ctx, r.client, keys, connID, userID, r.ttl.Milliseconds(), expiresAt, r.prefix).Err(); err != nil {
		return fmt.Errorf("failed to bind connection %s: %w", connID, err)
	}
	return nil
}

func (r *RedisRegistry) Unbind(ctx context.Context, connID string) error {
	_, err := r.unbind(ctx, connID)
	return err
}

func (r *RedisRegistry) unbind(ctx context.Context, connID string, deadline ...int64) (string, error) {
	keys := []string{r.connKey(connID), r.ownerKey(), r.expiryKey()}
	args := []any{connID, r.prefix}
	for _, d := range deadline {
		args = append(args, d)
	}
	owner, err := unbindScript.Run(ctx, r.client, keys, args...).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownConnection
	}
	if err != nil {
		return "", fmt.Errorf("failed to unbind connection %s: %w", connID, err)
	}
	return owner, nil
}

func (r *RedisRegistry) SocketsFor(ctx context.Context, userID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, connID := range members {
		checks[i] = pipe.Exists(ctx, r.connKey(connID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check connections: %w", err)
	}

	var out []string
	for i, cmd := range checks {
		if cmd.Val() > 0 {
			out = append(out, members[i])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *RedisRegistry) AnySocketFor(ctx context.Context, userID string) (string, bool, error) {
	return anySocket(r.SocketsFor(ctx, userID))
}

func (r *RedisRegistry) Sweep(ctx context.Context) ([]string, error) {
	now := r.now().UnixMilli()
	due, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired connections: %w", err)
	}

	r.mu.Lock()
	hooks := append([]ExpireFunc(nil), r.hooks...)
	r.mu.Unlock()

	var expired []string
	for _, connID := range due {
		owner, err := r.unbind(ctx, connID, now)
		if errors.Is(err, ErrUnknownConnection) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, connID)
		for _, fn := range hooks {
			fn(connID, owner)
		}
	}
	return expired, nil
}

func (r *RedisRegistry) OnExpire(fn ExpireFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}
