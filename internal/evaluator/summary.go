package evaluator

import (
	"github.com/betbot/signaldesk/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary 一批回测结果的统计
type Summary struct {
	Total           int     `json:"total"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	Active          int     `json:"active"`
	Expired         int     `json:"expired"`
	NoData          int     `json:"noData"`
	WinRate         float64 `json:"winRate"` // 百分比，分母为已触发止盈/止损的信号数
	TotalPNL        float64 `json:"totalPnl"`
	TotalPNLPercent float64 `json:"totalPnlPercent"`
	AvgPNLPercent   float64 `json:"avgPnlPercent"` // 对已平仓（止盈/止损/过期）信号取平均
}

// Summarize 汇总结果
func Summarize(results []domain.AnalysisResult) Summary {
	var (
		s      Summary
		pnl    = decimal.Zero
		pct    = decimal.Zero
		closed int
	)
	s.Total = len(results)
	for _, r := range results {
		switch {
		case r.Outcome.IsWin():
			s.Wins++
		case r.Outcome == domain.OutcomeSLHit:
			s.Losses++
		case r.Outcome == domain.OutcomeActive:
			s.Active++
			continue
		case r.Outcome == domain.OutcomeExpired:
			s.Expired++
		default:
			s.NoData++
			continue
		}
		closed++
		pnl = pnl.Add(decimal.NewFromFloat(r.PNL))
		pct = pct.Add(decimal.NewFromFloat(r.PNLPercent))
	}
	if resolved := s.Wins + s.Losses; resolved > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(resolved))).Mul(hundred).InexactFloat64()
	}
	s.TotalPNL = pnl.InexactFloat64()
	s.TotalPNLPercent = pct.InexactFloat64()
	if closed > 0 {
		s.AvgPNLPercent = pct.Div(decimal.NewFromInt(int64(closed))).InexactFloat64()
	}
	return s
}
