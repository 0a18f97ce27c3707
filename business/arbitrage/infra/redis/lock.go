// Package redis holds the redis-backed adapters of the arbitrage context.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/crosschain-arb/business/arbitrage/app"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

// unlockLua deletes the key only while it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// Lock is an ExecutionLock shared by every process pointed at the same
// redis. A lost or expired lock is never renewed.
type Lock struct {
	rdb    *redis.Client
	unlock *redis.Script
	log    logger.LoggerInterface
}

var _ app.ExecutionLock = (*Lock)(nil)

// NewLock creates a Lock.
func NewLock(rdb *redis.Client, log logger.LoggerInterface) *Lock {
	return &Lock{rdb: rdb, unlock: redis.NewScript(unlockLua), log: log}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes key for ttl. The release func may be called more than once.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := l.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, apperror.New(apperror.CodeExecutionLockFailed,
			apperror.WithCause(err),
			apperror.WithContext(key))
	}
	if !ok {
		return nil, apperror.Conflict(apperror.CodeAlreadyExecuting, key)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's context may already be done.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := l.unlock.Run(rctx, l.rdb, []string{lk}, token).Err(); err != nil {
				l.log.Warn(rctx, "execution lock release failed", "key", lk, "error", err)
			}
		})
	}
	return release, nil
}
