package analysis

import (
	"context"
	"fmt"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/metrics"
	"github.com/betbot/signaldesk/internal/normalizer"
)

// ImportReport 一次导入的统计
type ImportReport struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// SyncReport 信号源同步结果
type SyncReport struct {
	Stored int           `json:"stored"`
	Feeds  []FeedOutcome `json:"feeds"`
}

// FeedOutcome 单个信号源的同步结果
type FeedOutcome struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Error    string `json:"error,omitempty"`
}

// SyncFeeds 并行拉取所有配置的信号源并入库。
// 单个源失败只产生状态消息，已入库的数据保持不变。
// 无 ID 的记录按内容派生 ID，重复拉取覆盖原记录。
func (s *Service) SyncFeeds(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	if len(s.feeds) == 0 {
		s.notices.Warn("feeds", "no signal feeds configured")
		return report, nil
	}

	signals, results := s.fetcher.FetchAll(ctx, s.feeds)
	for _, r := range results {
		report.Feeds = append(report.Feeds, FeedOutcome{
			Name:     r.Feed,
			Source:   string(r.Source),
			Accepted: r.Accepted,
			Rejected: r.Rejected,
			Error:    r.ErrorMessage(),
		})
		if r.Err != nil {
			s.notices.Error("feed:"+r.Feed, "fetch failed: %v", r.Err)
		}
	}

	n, err := s.persistSignals(ctx, signals)
	if err != nil {
		return report, err
	}
	report.Stored = n
	s.notices.Info("feeds", "synced %d signals from %d feeds", n, len(s.feeds))
	return report, nil
}

// ImportManual 导入手工粘贴的 JSON（规范 TradeSignal 结构）
func (s *Service) ImportManual(ctx context.Context, body []byte) (ImportReport, error) {
	batch, err := normalizer.ParseManual(body)
	if err != nil {
		s.notices.Error("import", "manual import rejected: %v", err)
		return ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return s.storeBatch(ctx, normalizer.SourceManual, batch)
}

// IngestWebhook 接收外部推送；source 为 "auto" 时按记录逐条识别来源。
// 未带时间戳的信号以接收时间作为开仓时间。
func (s *Service) IngestWebhook(ctx context.Context, source string, body []byte) (ImportReport, error) {
	recs, err := normalizer.ParseEnvelope(body)
	if err != nil {
		s.notices.Error("webhook:"+source, "invalid payload: %v", err)
		return ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var batch normalizer.BatchResult
	label := normalizer.Source(source)
	if source == "auto" {
		for i, rec := range recs {
			sig, err := normalizer.Decode(normalizer.Detect(rec), rec)
			if err != nil {
				batch.Rejected++
				batch.Errors = append(batch.Errors, fmt.Errorf("record %d: %w", i, err))
				continue
			}
			batch.Signals = append(batch.Signals, sig)
		}
	} else {
		src, err := normalizer.ParseSource(source)
		if err != nil {
			return ImportReport{}, err
		}
		if batch, err = normalizer.DecodeBatch(src, recs); err != nil {
			return ImportReport{}, err
		}
		label = src
	}

	now := s.now().UTC()
	for i := range batch.Signals {
		sig := &batch.Signals[i]
		if !sig.OpenTime.IsZero() {
			continue
		}
		derived := sig.ID == normalizer.SignalID(*sig)
		sig.OpenTime = now
		// 派生 ID 随接收时间重新计算，不同时刻的相同推送各自入库
		if derived {
			sig.ID = normalizer.SignalID(*sig)
		}
	}
	return s.storeBatch(ctx, label, batch)
}

func (s *Service) storeBatch(ctx context.Context, src normalizer.Source, batch normalizer.BatchResult) (ImportReport, error) {
	metrics.SignalsIngested.WithLabelValues(string(src)).Add(float64(len(batch.Signals)))
	metrics.SignalsRejected.WithLabelValues(string(src)).Add(float64(batch.Rejected))

	report := ImportReport{Rejected: batch.Rejected}
	for _, e := range batch.Errors {
		report.Errors = append(report.Errors, e.Error())
	}
	n, err := s.persistSignals(ctx, batch.Signals)
	if err != nil {
		return report, err
	}
	report.Accepted = n
	if batch.Rejected > 0 {
		s.notices.Warn("import:"+string(src), "imported %d signals, dropped %d invalid records", n, batch.Rejected)
	} else {
		s.notices.Info("import:"+string(src), "imported %d signals", n)
	}
	return report, nil
}

// persistSignals 统一标的写法后入库
func (s *Service) persistSignals(ctx context.Context, signals []domain.TradeSignal) (int, error) {
	for i := range signals {
		signals[i].Asset = marketdata.NormalizeSymbol(signals[i].Asset)
	}
	n, err := s.store.UpsertSignals(ctx, signals)
	if err != nil {
		s.notices.Error("store", "saving signals failed: %v", err)
		return 0, fmt.Errorf("store signals: %w", err)
	}
	return n, nil
}
