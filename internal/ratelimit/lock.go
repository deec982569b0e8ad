package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Compare-and-delete so a holder whose lease expired cannot release the
// lease of the next holder.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockNotConfigured = errors.New("lock client not configured")
	ErrLockKeyEmpty      = errors.New("lock key is empty")
	ErrLockTTLInvalid    = errors.New("lock ttl must be positive")
)

// Locker hands out short leases on redis keys, identified by a random token.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock acquires key for ttl without blocking. The returned token must be
// passed to Release.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	if key == "" {
		return "", false, ErrLockKeyEmpty
	}
	if ttl <= 0 {
		return "", false, ErrLockTTLInvalid
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
