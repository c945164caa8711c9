package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/feeledger/internal/config"
	"go.uber.org/zap"
)

const keyFeeWrite = "fee:write:tenant:%d"

// writeBucketScript refills the tenant bucket from the Redis clock, takes one
// token when available and returns {allowed, remaining, wait_ms}.
const writeBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + (elapsed / 1000) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), wait}
`

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// WriteLimiter throttles payment, discount and fee structure writes per tenant
// with a token bucket kept in Redis. A nil limiter allows everything.
type WriteLimiter struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
	ttl    time.Duration
}

func NewWriteLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *WriteLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if client == nil {
		log.Warn("write rate limit enabled without redis, limiter disabled")
		return nil
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		log.Warn("write rate limit must be positive, limiter disabled",
			zap.Float64("rate", limitCfg.WriteRate),
			zap.Int("burst", limitCfg.WriteBurst),
		)
		return nil
	}
	return &WriteLimiter{
		client: client,
		script: redis.NewScript(writeBucketScript),
		rate:   limitCfg.WriteRate,
		burst:  limitCfg.WriteBurst,
		ttl:    bucketTTL(limitCfg.WriteRate, limitCfg.WriteBurst),
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *WriteLimiter) AllowTenant(ctx context.Context, tenantID snowflake.ID) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	res, err := l.script.Run(ctx, l.client,
		[]string{fmt.Sprintf(keyFeeWrite, tenantID.Int64())},
		l.rate, l.burst, l.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	return parseBucketReply(res, l.burst)
}

func parseBucketReply(res []any, burst int) (*RateLimitResult, error) {
	if len(res) != 3 {
		return nil, fmt.Errorf("write limiter: unexpected reply of %d values", len(res))
	}
	return &RateLimitResult{
		Allowed:    luaInt(res[0]) == 1,
		Limit:      burst,
		Remaining:  int(luaInt(res[1])),
		RetryAfter: time.Duration(luaInt(res[2])) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket for twice the time it takes to refill.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil((float64(burst) / rate) * 2)
	return time.Duration(math.Max(seconds, 1)) * time.Second
}

// luaInt reads a Lua number reply. Redis truncates Lua numbers to integers.
func luaInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
