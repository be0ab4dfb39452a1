package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/newtcli/pkg/util"
)

// DefaultLockTTL bounds how long a crashed holder can keep a session locked.
const DefaultLockTTL = 5 * time.Minute

// Locker is a distributed lock keyed by session name.
type Locker interface {
	Acquire(ctx context.Context, session, holder string, ttl time.Duration) error
	Release(ctx context.Context, session, holder string) error
}

// acquireLockScript is a Lua script for atomic lock acquisition.
// Returns 1 on success, 0 if already locked by another holder.
var acquireLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	if redis.call("HGET", key, "holder") == ARGV[1] then
		redis.call("EXPIRE", key, tonumber(ARGV[3]))
		return 1
	end
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseLockScript is a Lua script for atomic lock release with holder verification.
// Returns 1 on success, 0 if holder mismatch, -1 if key doesn't exist.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisLocker stores locks as NEWTCLI_LOCK|<session> hashes.
type RedisLocker struct {
	client redis.Scripter
}

// NewRedisLocker uses an existing client.
func NewRedisLocker(client redis.Scripter) *RedisLocker {
	return &RedisLocker{client: client}
}

// DialRedisLocker connects to a Redis server at addr (host:port).
func DialRedisLocker(addr string) *RedisLocker {
	return NewRedisLocker(redis.NewClient(&redis.Options{Addr: addr}))
}

// Close closes the underlying client when the locker owns one.
func (l *RedisLocker) Close() error {
	if c, ok := l.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// LockKey returns the Redis key guarding a session.
func LockKey(session string) string {
	return fmt.Sprintf("NEWTCLI_LOCK|%s", session)
}

// Acquire takes the lock or returns util.ErrSessionLocked. Re-acquiring a
// lock already held by holder extends it.
func (l *RedisLocker) Acquire(ctx context.Context, session, holder string, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := acquireLockScript.Run(ctx, l.client, []string{LockKey(session)},
		holder, now, fmt.Sprintf("%d", secs)).Int()
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", session, err)
	}
	if result == 0 {
		return fmt.Errorf("%s: %w", session, util.ErrSessionLocked)
	}
	return nil
}

// Release drops the lock if holder owns it.
func (l *RedisLocker) Release(ctx context.Context, session, holder string) error {
	result, err := releaseLockScript.Run(ctx, l.client, []string{LockKey(session)}, holder).Int()
	if err != nil {
		return fmt.Errorf("releasing lock for %s: %w", session, err)
	}
	if result == 0 {
		return fmt.Errorf("lock holder mismatch for %s", session)
	}
	return nil
}
