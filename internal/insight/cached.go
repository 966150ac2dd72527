package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/signaldesk/pkg/cache"
)

// Cached 按 (信号, 回测结果) 缓存生成结果；结果变化时自然失效
type Cached struct {
	inner Generator
	cache *cache.InMemoryCache[string, Insight]
}

func NewCached(inner Generator, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{
		inner: inner,
		cache: cache.NewInMemoryCache[string, Insight](ttl, ttl),
	}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Generate(ctx context.Context, req Request) (Insight, error) {
	return c.cache.GetOrLoad(cacheKey(req), func() (Insight, error) {
		return c.inner.Generate(ctx, req)
	})
}

// Close 停止缓存后台清理
func (c *Cached) Close() {
	c.cache.Close()
}

func cacheKey(req Request) string {
	key := req.Signal.ID
	if r := req.Result; r != nil {
		key += fmt.Sprintf("|%s|%d", r.Outcome, r.BarsScanned)
	}
	return key
}
