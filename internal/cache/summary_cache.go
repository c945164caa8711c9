package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/feeledger/internal/config"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	summaryKeyPattern    = "fee:summary:%d:%d"
	generationKeyPattern = "fee:summary:gen:%d:%d"

	// generationTTL only has to outlive the slowest summary computation.
	generationTTL = 24 * time.Hour
)

// setIfCurrentScript stores the summary only while the student's generation
// still equals the one read before the summary was computed.
var setIfCurrentScript = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if (current or "0") ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

type SummaryCacheParams struct {
	fx.In

	Log    *zap.Logger
	Rules  *config.FeeRulesHolder
	Client *redis.Client `optional:"true"`
}

// NewSummaryCache returns a Redis backed cache when a client is available and
// an in-memory one otherwise. Entry lifetime follows fees.summaryCacheTTL.
func NewSummaryCache(p SummaryCacheParams) feedomain.SummaryCache {
	ttl := func() time.Duration { return p.Rules.Get().SummaryCacheTTL }
	if p.Client != nil {
		return &redisSummaryCache{client: p.Client, ttl: ttl, log: p.Log.Named("cache.summary")}
	}
	return newMemorySummaryCache(ttl)
}

// NewMemorySummaryCache is the in-process summary cache.
func NewMemorySummaryCache(ttl time.Duration) feedomain.SummaryCache {
	return newMemorySummaryCache(func() time.Duration { return ttl })
}

func newMemorySummaryCache(ttl func() time.Duration) *memorySummaryCache {
	return &memorySummaryCache{
		entries:     NewTTLCache[string, feedomain.FeeSummary](),
		generations: make(map[string]uint64),
		ttl:         ttl,
	}
}

func summaryKey(tenantID, studentID snowflake.ID) string {
	return fmt.Sprintf(summaryKeyPattern, tenantID.Int64(), studentID.Int64())
}

func generationKey(tenantID, studentID snowflake.ID) string {
	return fmt.Sprintf(generationKeyPattern, tenantID.Int64(), studentID.Int64())
}

type memorySummaryCache struct {
	entries Cache[string, feedomain.FeeSummary]
	ttl     func() time.Duration

	mu          sync.Mutex
	generations map[string]uint64
}

func (c *memorySummaryCache) Get(_ context.Context, tenantID, studentID snowflake.ID) (*feedomain.FeeSummary, bool) {
	summary, ok := c.entries.Get(summaryKey(tenantID, studentID))
	if !ok {
		return nil, false
	}
	return &summary, true
}

func (c *memorySummaryCache) Generation(_ context.Context, tenantID, studentID snowflake.ID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[summaryKey(tenantID, studentID)]
}

func (c *memorySummaryCache) Set(_ context.Context, tenantID, studentID snowflake.ID, gen uint64, summary feedomain.FeeSummary) {
	ttl := c.ttl()
	if ttl <= 0 {
		return
	}
	key := summaryKey(tenantID, studentID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != gen {
		return
	}
	c.entries.Set(key, summary, ttl)
}

func (c *memorySummaryCache) Invalidate(_ context.Context, tenantID snowflake.ID, studentIDs ...snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range studentIDs {
		key := summaryKey(tenantID, id)
		c.generations[key]++
		c.entries.Delete(key)
	}
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    func() time.Duration
	log    *zap.Logger
}

// Cache failures are logged and treated as misses; the summary is always
// recomputable from the record store.
func (c *redisSummaryCache) Get(ctx context.Context, tenantID, studentID snowflake.ID) (*feedomain.FeeSummary, bool) {
	raw, err := c.client.Get(ctx, summaryKey(tenantID, studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("summary cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var summary feedomain.FeeSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.log.Warn("summary cache entry unreadable", zap.Error(err))
		return nil, false
	}
	return &summary, true
}

// Generation reads the student's generation. A failed read returns 0, which
// only matches when the student was never invalidated.
func (c *redisSummaryCache) Generation(ctx context.Context, tenantID, studentID snowflake.ID) uint64 {
	gen, err := c.client.Get(ctx, generationKey(tenantID, studentID)).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("summary cache generation read failed", zap.Error(err))
	}
	return gen
}

func (c *redisSummaryCache) Set(ctx context.Context, tenantID, studentID snowflake.ID, gen uint64, summary feedomain.FeeSummary) {
	ttl := c.ttl()
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		c.log.Warn("summary cache encode failed", zap.Error(err))
		return
	}
	keys := []string{summaryKey(tenantID, studentID), generationKey(tenantID, studentID)}
	if err := setIfCurrentScript.Run(ctx, c.client, keys, gen, raw, ttl.Milliseconds()).Err(); err != nil {
		c.log.Warn("summary cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached summaries and advances each student's
// generation in one round trip.
func (c *redisSummaryCache) Invalidate(ctx context.Context, tenantID snowflake.ID, studentIDs ...snowflake.ID) {
	if len(studentIDs) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range studentIDs {
			genKey := generationKey(tenantID, id)
			pipe.Del(ctx, summaryKey(tenantID, id))
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("summary cache invalidation failed", zap.Int("students", len(studentIDs)), zap.Error(err))
	}
}
