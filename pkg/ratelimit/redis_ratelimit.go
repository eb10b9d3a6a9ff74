package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Info Rate Limit 상태 (응답 헤더용)
type Info struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RedisRateLimiter Redis 기반 분산 Rate Limiter (고정 윈도우 카운터)
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRateLimiter Redis 기반 Rate Limiter 생성
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: "ratelimit:",
	}
}

// allowScript 카운터 증가와 TTL 설정을 원자적으로 수행
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end

	local ttl = redis.call('PTTL', key)
	return {count, ttl}
`)

// Allow 요청 허용 여부 확인.
// key: Rate Limit 대상 식별자 (userID 또는 IP)
// limit: 윈도우 내 최대 요청 수
// window: 윈도우 크기
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, *Info, error) {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	redisKey := r.keyPrefix + key

	result, err := allowScript.Run(ctx, r.client, []string{redisKey}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(result) != 2 {
		return false, nil, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	count, ttlMs := result[0], result[1]
	if ttlMs < 0 {
		ttlMs = window.Milliseconds()
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	info := &Info{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}

	return count <= int64(limit), info, nil
}
