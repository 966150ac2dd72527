package analysis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/metrics"
)

// ImportBarsCSV 导入用户上传的 OHLCV CSV
func (s *Service) ImportBarsCSV(ctx context.Context, symbol, interval string, r io.Reader) (int, error) {
	symbol = marketdata.NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, ErrNoAsset
	}
	interval = s.interval(interval)

	bars, err := marketdata.ParseCSV(r)
	if err != nil {
		s.notices.Error("bars:"+symbol, "csv upload rejected: %v", err)
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	n, err := s.store.UpsertBars(ctx, symbol, interval, bars)
	if err != nil {
		return 0, fmt.Errorf("store bars: %w", err)
	}
	metrics.BarsStored.WithLabelValues(symbol, "csv").Add(float64(n))
	s.notices.Info("bars:"+symbol, "imported %d %s bars from csv", n, interval)
	return n, nil
}

// StoreStreamBar kline 流的收盘回调
func (s *Service) StoreStreamBar(symbol, interval string, bar domain.HistoricalBar) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.UpsertBars(ctx, symbol, interval, []domain.HistoricalBar{bar}); err != nil {
		log.WithField("symbol", symbol).Warnf("写入实时 K 线失败: %v", err)
		return
	}
	metrics.BarsStored.WithLabelValues(symbol, "stream").Inc()
}

// Bars 先查库；库内数据覆盖不到 start（为空，或首根 bar 晚于 start 一个周期以上）
// 且配置了远程来源时，拉取远程数据入库并与库内数据合并。
// 远程失败只记状态消息，返回库内已有的 bar。
func (s *Service) Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
	symbol = marketdata.NormalizeSymbol(symbol)
	interval = s.interval(interval)

	stored, err := s.store.Bars(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	if s.bars == nil || coversStart(stored, interval, start) {
		return stored, nil
	}

	remote, err := s.bars.Bars(ctx, symbol, interval, start, end)
	if err != nil {
		s.notices.Error("bars:"+symbol, "historical data fetch failed: %v", err)
		return stored, nil
	}
	if len(remote) == 0 {
		return stored, nil
	}
	if n, err := s.store.UpsertBars(ctx, symbol, interval, remote); err != nil {
		log.WithField("symbol", symbol).Warnf("保存远程 K 线失败: %v", err)
	} else {
		metrics.BarsStored.WithLabelValues(symbol, "remote").Add(float64(n))
	}
	return marketdata.MergeBars(stored, marketdata.FilterRange(remote, start, end)), nil
}

// coversStart 库内 bar 是否从 start 所在周期开始；start 为零值时有数据即可
func coversStart(bars []domain.HistoricalBar, interval string, start time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	if start.IsZero() {
		return true
	}
	step, _ := marketdata.IntervalDuration(interval)
	return !bars[0].Timestamp.After(start.Add(step))
}
