package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("session lock not acquired")
	ErrLockNotHeld     = errors.New("session lock not held")
)

// UnlockFunc 획득한 락 해제
type UnlockFunc func(ctx context.Context) error

// SessionLocker 세션 단위 상호 배제.
// 동일 sessionId에 대한 join은 반드시 직렬화되어야 한다 (로스터/평균 레이팅의
// read-modify-write 경합 방지).
type SessionLocker interface {
	LockSession(ctx context.Context, sessionID string) (UnlockFunc, error)
}

// RedisSessionLocker Redis SETNX 기반 분산 세션 락 (다중 인스턴스용)
type RedisSessionLocker struct {
	client        *redis.Client
	ttl           time.Duration
	maxRetries    int
	retryInterval time.Duration
}

// NewRedisSessionLocker Redis 세션 락 생성
func NewRedisSessionLocker(client *redis.Client, ttl time.Duration) *RedisSessionLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisSessionLocker{
		client:        client,
		ttl:           ttl,
		maxRetries:    20,
		retryInterval: 50 * time.Millisecond,
	}
}

// releaseScript 자신이 획득한 락만 해제
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// LockSession 재시도를 통한 락 획득
func (l *RedisSessionLocker) LockSession(ctx context.Context, sessionID string) (UnlockFunc, error) {
	key := lockKey(sessionID)
	owner := uuid.New().String()

	for i := 0; i < l.maxRetries; i++ {
		// SET NX 명령으로 원자적 락 획득, TTL은 크래시 시 자동 해제용
		acquired, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}

		if acquired {
			return func(ctx context.Context) error {
				result, err := releaseScript.Run(ctx, l.client, []string{key}, owner).Int()
				if err != nil {
					return err
				}
				if result == 0 {
					return ErrLockNotHeld
				}
				return nil
			}, nil
		}

		// 재시도 전 대기
		if i < l.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.retryInterval):
			}
		}
	}

	return nil, ErrLockNotAcquired
}

func lockKey(sessionID string) string {
	// "session:" 네임스페이스와 분리 (페이로드 SCAN에 잡히지 않도록)
	return "sessionlock:" + sessionID
}
