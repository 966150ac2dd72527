package analysis

import (
	"context"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/metrics"
	"github.com/betbot/signaldesk/internal/store"
)

// Request 一次回测的参数。Asset 与 SignalIDs 至少给一个；
// ExpiryWindow 为空时使用服务默认值。
type Request struct {
	Asset        string         `json:"asset"`
	Interval     string         `json:"interval"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	ExpiryWindow *time.Duration `json:"-"`
	SignalIDs    []string       `json:"signalIds"`
}

// RunReport 回测结果
type RunReport struct {
	RunID   int64                   `json:"runId"`
	Results []domain.AnalysisResult `json:"results"`
	Summary evaluator.Summary       `json:"summary"`
	// Skipped 没有 K 线而未回测的标的（仅多标的运行时出现）
	Skipped []string `json:"skipped,omitempty"`
}

// Run 对选中的信号回放历史 K 线，保存结果并回写信号状态
func (s *Service) Run(ctx context.Context, req Request) (*RunReport, error) {
	asset := marketdata.NormalizeSymbol(req.Asset)
	if asset == "" && len(req.SignalIDs) == 0 {
		return nil, ErrNoAsset
	}
	interval := s.interval(req.Interval)

	signals, err := s.store.ListSignals(ctx, store.SignalFilter{Asset: asset, IDs: req.SignalIDs})
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, ErrNoSignals
	}

	opts := evaluator.Options{
		Start:        req.Start,
		End:          req.End,
		ExpiryWindow: s.expiryWindow,
		Now:          s.now(),
	}
	if req.ExpiryWindow != nil {
		opts.ExpiryWindow = *req.ExpiryWindow
	}
	// 指定了结束日期时，过期以结束日期为参考
	if !req.End.IsZero() {
		opts.Now = req.End
	}

	// 先取齐所有标的的 K 线，缺数据的在回测前拒绝
	groups := groupByAsset(signals)
	barsByAsset := make(map[string][]domain.HistoricalBar, len(groups))
	report := &RunReport{}
	for _, g := range groups {
		bars, err := s.Bars(ctx, g.asset, interval, barsFrom(g.signals, req.Start), req.End)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			report.Skipped = append(report.Skipped, g.asset)
			continue
		}
		barsByAsset[g.asset] = bars
	}
	if len(barsByAsset) == 0 {
		s.notices.Warn("analysis", "no historical data for %v (%s)", report.Skipped, interval)
		return nil, ErrNoHistoricalData
	}
	if asset != "" && len(report.Skipped) > 0 {
		return nil, ErrNoHistoricalData
	}

	runAsset := asset
	if runAsset == "" {
		runAsset = "*"
	}
	runID, err := s.store.StartRun(ctx, runAsset, interval)
	if err != nil {
		return nil, err
	}
	report.RunID = runID

	for _, g := range groups {
		bars, ok := barsByAsset[g.asset]
		if !ok {
			continue
		}
		results := evaluator.EvaluateAll(g.signals, bars, opts)
		for i, res := range results {
			metrics.Evaluations.WithLabelValues(string(res.Outcome)).Inc()
			updated := evaluator.Apply(g.signals[i], res)
			if err := s.store.UpdateSignalOutcome(ctx, updated); err != nil {
				_ = s.store.FinishRun(ctx, runID, len(report.Results), nil, err)
				return nil, err
			}
		}
		report.Results = append(report.Results, results...)
	}

	if err := s.store.SaveResults(ctx, runID, report.Results); err != nil {
		_ = s.store.FinishRun(ctx, runID, 0, nil, err)
		return nil, err
	}
	report.Summary = evaluator.Summarize(report.Results)
	if err := s.store.FinishRun(ctx, runID, len(report.Results), &report.Summary, nil); err != nil {
		return nil, err
	}

	metrics.AnalysisRuns.Inc()
	metrics.LastRunSignals.Set(int64(len(report.Results)))
	metrics.LastRunUnix.Set(s.now().Unix())
	if len(report.Skipped) > 0 {
		s.notices.Warn("analysis", "skipped %v: no historical data", report.Skipped)
	}
	s.notices.Info("analysis", "run %d: %d signals on %s, win rate %.1f%%",
		runID, report.Summary.Total, runAsset, report.Summary.WinRate)
	return report, nil
}

type assetGroup struct {
	asset   string
	signals []domain.TradeSignal
}

// groupByAsset 保持首次出现的顺序
func groupByAsset(signals []domain.TradeSignal) []assetGroup {
	idx := make(map[string]int)
	var out []assetGroup
	for _, sig := range signals {
		i, ok := idx[sig.Asset]
		if !ok {
			i = len(out)
			idx[sig.Asset] = i
			out = append(out, assetGroup{asset: sig.Asset})
		}
		out[i].signals = append(out[i].signals, sig)
	}
	return out
}

// barsFrom K 线起点：最早的开仓时间，与请求起点取较晚者
func barsFrom(signals []domain.TradeSignal, start time.Time) time.Time {
	var earliest time.Time
	for _, sig := range signals {
		if sig.OpenTime.IsZero() {
			return start
		}
		if earliest.IsZero() || sig.OpenTime.Before(earliest) {
			earliest = sig.OpenTime
		}
	}
	if start.After(earliest) {
		return start
	}
	return earliest
}
