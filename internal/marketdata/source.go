// Package marketdata 提供历史 K 线（bar）的来源：CSV 文件、REST 接口、Binance 公共接口，
// 以及带缓存的包装和实时 kline 订阅。
package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "marketdata")

// Source 历史 bar 提供者；返回按时间升序的 bar，start/end 零值表示不限
type Source interface {
	Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error)
}

// SourceFunc 便于测试和组合
type SourceFunc func(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error)

func (f SourceFunc) Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
	return f(ctx, symbol, interval, start, end)
}

// NormalizeSymbol "btc/usdt" -> "BTCUSDT"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "", "-", "", "_", "", " ", "").Replace(s)
}

// IntervalDuration 解析 Binance 风格周期（1m/15m/1h/4h/1d/1w/1M）；1M 按 30 天计
func IntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.TrimSpace(interval)
	if len(interval) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}
