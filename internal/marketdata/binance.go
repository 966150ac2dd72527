package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/normalizer"
	"github.com/betbot/signaldesk/pkg/httpclient"
	"github.com/betbot/signaldesk/pkg/ratelimit"
)

const (
	DefaultBinanceURL = "https://api.binance.com"
	binanceKlineLimit = 1000
)

// BinanceSource 通过 Binance 现货公共接口 /api/v3/klines 拉取历史 K 线，自动分页
type BinanceSource struct {
	client  *httpclient.Client
	limiter ratelimit.Limiter
}

// NewBinanceSource baseURL 为空时使用 api.binance.com
func NewBinanceSource(baseURL string, timeout time.Duration) *BinanceSource {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &BinanceSource{
		client: httpclient.NewClient(baseURL, httpclient.Options{Timeout: timeout, RetryCount: 2}),
		// Binance 权重上限 1200/min，klines 每次权重 2，这里保守取 300/min
		limiter: ratelimit.NewSlidingWindow(300, time.Minute),
	}
}

func (s *BinanceSource) Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
	symbol = NormalizeSymbol(symbol)
	if end.IsZero() {
		end = time.Now()
	}

	var all []domain.HistoricalBar
	startMs := int64(0)
	if !start.IsZero() {
		startMs = start.UnixMilli()
	}
	endMs := end.UnixMilli()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return all, err
		}
		params := map[string]any{
			"symbol":   symbol,
			"interval": interval,
			"endTime":  endMs,
			"limit":    binanceKlineLimit,
		}
		if startMs > 0 {
			params["startTime"] = startMs
		}
		body, err := s.client.Get(ctx, "/api/v3/klines", params)
		if err != nil {
			return all, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
		}
		page, lastClose, err := decodeBinanceKlines(body)
		if err != nil {
			return all, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
		}
		all = append(all, page...)

		// 不足一页说明已到末尾；无起点时只取最近一页
		if len(page) < binanceKlineLimit || startMs == 0 || lastClose+1 >= endMs {
			break
		}
		startMs = lastClose + 1
		log.Debugf("binance %s %s: 已拉取 %d 根，继续分页", symbol, interval, len(all))
	}
	return all, nil
}

// decodeBinanceKlines 数组的数组：[openTime, open, high, low, close, volume, closeTime, ...]
func decodeBinanceKlines(body []byte) ([]domain.HistoricalBar, int64, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("invalid klines json: %w", err)
	}
	bars := make([]domain.HistoricalBar, 0, len(raw))
	var lastClose int64
	for i, row := range raw {
		if len(row) < 7 {
			return nil, 0, fmt.Errorf("kline %d: expected 7+ fields, got %d", i, len(row))
		}
		var openMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, 0, fmt.Errorf("kline %d open time: %w", i, err)
		}
		if err := json.Unmarshal(row[6], &lastClose); err != nil {
			return nil, 0, fmt.Errorf("kline %d close time: %w", i, err)
		}
		b := domain.HistoricalBar{Timestamp: time.UnixMilli(openMs).UTC()}
		for j, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume} {
			var s string
			if err := json.Unmarshal(row[j+1], &s); err != nil {
				return nil, 0, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			n, err := normalizer.ParseNumber(s)
			if err != nil {
				return nil, 0, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			*dst = n
		}
		bars = append(bars, b)
	}
	return bars, lastClose, nil
}
