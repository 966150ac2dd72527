package analysis

import (
	"context"
	"fmt"
	"io"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	"github.com/betbot/signaldesk/internal/insight"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/report"
	"github.com/betbot/signaldesk/internal/store"
)

// Results 已保存的回测结果及其汇总
func (s *Service) Results(ctx context.Context, f store.ResultFilter) ([]domain.AnalysisResult, evaluator.Summary, error) {
	if f.Asset != "" {
		f.Asset = marketdata.NormalizeSymbol(f.Asset)
	}
	results, err := s.store.ListResults(ctx, f)
	if err != nil {
		return nil, evaluator.Summary{}, err
	}
	return results, evaluator.Summarize(results), nil
}

// ExportCSV 把结果写成 CSV
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, f store.ResultFilter) (int, error) {
	results, _, err := s.Results(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := report.WriteCSV(w, results); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(results), nil
}

// Insight 为单个信号生成解读；配置的生成器失败时退回规则模板
func (s *Service) Insight(ctx context.Context, signalID string) (insight.Insight, error) {
	sig, err := s.store.GetSignal(ctx, signalID)
	if err != nil {
		return insight.Insight{}, err
	}
	if sig == nil {
		return insight.Insight{}, ErrSignalNotFound
	}
	res, err := s.store.GetResult(ctx, signalID)
	if err != nil {
		return insight.Insight{}, err
	}

	req := insight.Request{Signal: *sig, Result: res}
	out, err := s.insight.Generate(ctx, req)
	if err == nil {
		return out, nil
	}
	if s.insight.Name() == s.fallback.Name() {
		return insight.Insight{}, err
	}
	s.notices.Warn("insight", "%s failed, using %s: %v", s.insight.Name(), s.fallback.Name(), err)
	return s.fallback.Generate(ctx, req)
}
