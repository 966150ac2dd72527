// Package evaluator 按 OHLC bar 回放信号，判定先触发止损还是止盈。
//
// 同一根 bar 内同时触及止损与止盈时判定为止损（SL 优先）。OHLC 粒度无法还原
// bar 内真实价格路径，这是有意保留的保守近似，不是缺陷。
package evaluator

import (
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Options 回测参数
type Options struct {
	// Start/End 限定参与回放的 bar 时间范围（闭区间），零值表示不限
	Start time.Time
	End   time.Time
	// ExpiryWindow 信号从开仓起的有效期，<=0 表示永不过期
	ExpiryWindow time.Duration
	// Now 判定过期的参考时间，零值时使用最后一根被扫描 bar 的时间
	Now time.Time
}

// Evaluate 对单个信号回放同一标的的 bar 序列（调用方保证按时间升序）
func Evaluate(sig domain.TradeSignal, bars []domain.HistoricalBar, opts Options) domain.AnalysisResult {
	res := domain.AnalysisResult{
		SignalID:  sig.ID,
		Asset:     sig.Asset,
		Direction: sig.Direction,
		Entry:     sig.Entry,
		EntryTime: sig.OpenTime,
		HitIndex:  -1,
	}

	window := applicableBars(sig, bars, opts)
	if len(window) == 0 {
		res.Outcome = domain.OutcomeNoData
		return res
	}

	tps := sig.TakeProfits()
	for i, b := range window {
		res.BarsScanned = i + 1
		if stopTouched(sig, b) {
			return resolve(res, sig, domain.OutcomeSLHit, sig.StopLoss, i, b.Timestamp)
		}
		if tp, ok := highestTakeProfitTouched(sig, tps, b); ok {
			return resolve(res, sig, domain.TakeProfitOutcome(tp.Level), tp.Price, i, b.Timestamp)
		}
	}

	last := window[len(window)-1]
	switch {
	case expired(sig, last, opts):
		res.Outcome = domain.OutcomeExpired
		res.ExitPrice = last.Close
		res.PNL, res.PNLPercent = PNL(sig, last.Close)
	case sig.Status == "" || sig.Status == domain.SignalStatusActive:
		res.Outcome = domain.OutcomeActive
	default:
		// 生命周期已结束（completed/stopped/cancelled）但价格从未触及任何价位
		res.Outcome = domain.OutcomeExpired
		res.ExitPrice = last.Close
		res.PNL, res.PNLPercent = PNL(sig, last.Close)
	}
	return res
}

// EvaluateAll 对同一标的的一批信号逐个回放
func EvaluateAll(signals []domain.TradeSignal, bars []domain.HistoricalBar, opts Options) []domain.AnalysisResult {
	out := make([]domain.AnalysisResult, 0, len(signals))
	for _, s := range signals {
		out = append(out, Evaluate(s, bars, opts))
	}
	return out
}

// PNL 按方向计算盈亏：多头 exit-entry，空头 entry-exit；百分比 = pnl / entry * 100
func PNL(sig domain.TradeSignal, exit float64) (float64, float64) {
	if sig.Entry <= 0 {
		return 0, 0
	}
	entry := decimal.NewFromFloat(sig.Entry)
	diff := decimal.NewFromFloat(exit).Sub(entry)
	if !sig.IsLong() {
		diff = diff.Neg()
	}
	pct := diff.Div(entry).Mul(hundred)
	return diff.InexactFloat64(), pct.InexactFloat64()
}

// Apply 把回测结果写回信号：SL -> stopped，TP -> completed，Expired -> cancelled
func Apply(sig domain.TradeSignal, res domain.AnalysisResult) domain.TradeSignal {
	sig.Outcome = res.Outcome
	sig.PNL = res.PNL
	sig.PNLPercent = res.PNLPercent
	switch {
	case res.Outcome == domain.OutcomeSLHit:
		sig.Status = domain.SignalStatusStopped
	case res.Outcome.IsWin():
		sig.Status = domain.SignalStatusCompleted
	case res.Outcome == domain.OutcomeExpired:
		sig.Status = domain.SignalStatusCancelled
	case sig.Status == "":
		sig.Status = domain.SignalStatusActive
	}
	return sig
}

func applicableBars(sig domain.TradeSignal, bars []domain.HistoricalBar, opts Options) []domain.HistoricalBar {
	out := make([]domain.HistoricalBar, 0, len(bars))
	for _, b := range bars {
		if !sig.OpenTime.IsZero() && b.Timestamp.Before(sig.OpenTime) {
			continue
		}
		if !opts.Start.IsZero() && b.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && b.Timestamp.After(opts.End) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func stopTouched(sig domain.TradeSignal, b domain.HistoricalBar) bool {
	if sig.StopLoss <= 0 {
		return false
	}
	if sig.IsLong() {
		return b.Low <= sig.StopLoss
	}
	return b.High >= sig.StopLoss
}

// highestTakeProfitTouched 同一根 bar 触及多个止盈时取最高一级
func highestTakeProfitTouched(sig domain.TradeSignal, tps []domain.TakeProfitLevel, b domain.HistoricalBar) (domain.TakeProfitLevel, bool) {
	for i := len(tps) - 1; i >= 0; i-- {
		tp := tps[i]
		if sig.IsLong() && b.High >= tp.Price {
			return tp, true
		}
		if !sig.IsLong() && b.Low <= tp.Price {
			return tp, true
		}
	}
	return domain.TakeProfitLevel{}, false
}

func expired(sig domain.TradeSignal, last domain.HistoricalBar, opts Options) bool {
	if opts.ExpiryWindow <= 0 || sig.OpenTime.IsZero() {
		return false
	}
	ref := opts.Now
	if ref.IsZero() {
		ref = last.Timestamp
	}
	return ref.Sub(sig.OpenTime) >= opts.ExpiryWindow
}

func resolve(res domain.AnalysisResult, sig domain.TradeSignal, outcome domain.Outcome, exit float64, idx int, at time.Time) domain.AnalysisResult {
	res.Outcome = outcome
	res.ExitPrice = exit
	res.HitIndex = idx
	hit := at
	res.HitTime = &hit
	res.PNL, res.PNLPercent = PNL(sig, exit)
	return res
}
