package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/pkg/cache"
	"github.com/betbot/signaldesk/pkg/kvstore"
)

// CachedSource 两级缓存：内存 TTL 缓存在前，Badger 持久化在后（可选）。
// 结束时间为零（取到“现在”）的请求只进内存缓存，避免持久化不完整的区间。
type CachedSource struct {
	inner Source
	mem   *cache.InMemoryCache[string, []domain.HistoricalBar]
	kv    *kvstore.Store
	ttl   time.Duration
}

// NewCachedSource kv 为 nil 时只用内存缓存
func NewCachedSource(inner Source, kv *kvstore.Store, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSource{
		inner: inner,
		mem:   cache.NewInMemoryCache[string, []domain.HistoricalBar](ttl, ttl),
		kv:    kv,
		ttl:   ttl,
	}
}

func cacheKey(symbol, interval string, start, end time.Time) string {
	ms := func(t time.Time) int64 {
		if t.IsZero() {
			return 0
		}
		return t.UnixMilli()
	}
	return fmt.Sprintf("bars/%s/%s/%d/%d", NormalizeSymbol(symbol), interval, ms(start), ms(end))
}

func (c *CachedSource) Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
	key := cacheKey(symbol, interval, start, end)
	return c.mem.GetOrLoad(key, func() ([]domain.HistoricalBar, error) {
		persist := c.kv != nil && !end.IsZero()
		if persist {
			var bars []domain.HistoricalBar
			err := c.kv.GetJSON(key, &bars)
			if err == nil {
				return bars, nil
			}
			if !errors.Is(err, kvstore.ErrNotFound) {
				log.Warnf("读取 bar 缓存失败 key=%s: %v", key, err)
			}
		}

		bars, err := c.inner.Bars(ctx, symbol, interval, start, end)
		if err != nil {
			return nil, err
		}
		if persist && len(bars) > 0 {
			if err := c.kv.SetJSON(key, bars, 0); err != nil {
				log.Warnf("写入 bar 缓存失败 key=%s: %v", key, err)
			}
		}
		return bars, nil
	})
}

// Close 停止内存缓存的后台清理（kv 由调用方关闭）
func (c *CachedSource) Close() {
	c.mem.Close()
}
