package caselock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

const (
	// Redis key prefix for case locks.
	caseLockKeyPrefix = "certflow:caselock:"

	defaultLeaseTTL      = 10 * time.Second
	defaultAcquireWithin = 5 * time.Second
	acquireRetryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only when the caller still owns it, so an
// expired lease can never release a lock re-acquired by another instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements per-case locking with Redis leases. This is the
// recommended implementation for multi-instance deployments where several
// servers mutate shared case state.
type RedisLocker struct {
	client        *redis.Client
	leaseTTL      time.Duration
	acquireWithin time.Duration
}

// RedisLockerOption configures a RedisLocker instance.
type RedisLockerOption func(*RedisLocker)

// WithLeaseTTL sets the lock lease duration. Workflow operations complete in
// well under a second, so the lease only matters after a crash.
func WithLeaseTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.leaseTTL = ttl
		}
	}
}

// WithAcquireTimeout bounds how long WithLock waits for a contended lock.
func WithAcquireTimeout(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.acquireWithin = d
		}
	}
}

// NewRedisLocker constructs a Redis-backed case locker.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		leaseTTL:      defaultLeaseTTL,
		acquireWithin: defaultAcquireWithin,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) WithLock(ctx context.Context, caseID id.CaseID, fn func(ctx context.Context) error) error {
	key := caseLockKeyPrefix + caseID.String()
	owner := uuid.NewString()

	if err := l.acquire(ctx, key, owner); err != nil {
		return err
	}
	defer func() {
		// Best-effort release; the lease TTL bounds a failed release.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, owner).Result()
	}()

	return fn(ctx)
}

func (l *RedisLocker) acquire(ctx context.Context, key, owner string) error {
	deadline := time.Now().Add(l.acquireWithin)
	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.leaseTTL).Result()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire case lock")
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return dErrors.New(dErrors.CodeConflict, "case is locked by another operation")
		}
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeInternal, "case lock wait cancelled")
		case <-time.After(acquireRetryInterval):
		}
	}
}
