package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "signaldesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleSignal(id, asset string, open time.Time) domain.TradeSignal {
	return domain.TradeSignal{
		ID: id, Asset: asset, Direction: domain.DirectionLong,
		Entry: 100, StopLoss: 90, TakeProfit1: 110, TakeProfit2: 120,
		OpenTime: open, Status: domain.SignalStatusActive, Provider: "manual",
		MarketType: domain.MarketTypeCrypto, Timeframe: "1h",
	}
}

func TestSignalsUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertSignals(ctx, []domain.TradeSignal{
		sampleSignal("b", "BTCUSDT", t0.Add(time.Hour)),
		sampleSignal("a", "BTCUSDT", t0),
		sampleSignal("c", "ETHUSDT", t0),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := s.ListSignals(ctx, SignalFilter{Asset: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, t0, list[0].OpenTime)
	assert.Equal(t, 120.0, list[0].TakeProfit2)

	// 回测结果写回后，再次导入不会覆盖结果字段
	sig := list[0]
	sig.Status, sig.Outcome, sig.PNL, sig.PNLPercent = domain.SignalStatusCompleted, domain.OutcomeTP1Hit, 10, 10
	require.NoError(t, s.UpdateSignalOutcome(ctx, sig))

	updated := sampleSignal("a", "BTCUSDT", t0)
	updated.Entry = 101
	_, err = s.UpsertSignals(ctx, []domain.TradeSignal{updated})
	require.NoError(t, err)

	got, err := s.GetSignal(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 101.0, got.Entry)
	assert.Equal(t, domain.OutcomeTP1Hit, got.Outcome)
	assert.Equal(t, 10.0, got.PNL)
	assert.Equal(t, domain.SignalStatusCompleted, got.Status)

	completed, err := s.ListSignals(ctx, SignalFilter{Status: domain.SignalStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "a", completed[0].ID)

	missing, err := s.GetSignal(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, s.UpdateSignalOutcome(ctx, domain.TradeSignal{ID: "zzz"}))

	byIDs, err := s.ListSignals(ctx, SignalFilter{IDs: []string{"a", "c"}})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	limited, err := s.ListSignals(ctx, SignalFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assets, err := s.SignalAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, assets)
}

func TestUpsertTakesFeedStatusWhileUnresolved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sig := sampleSignal("x", "BTCUSDT", t0)
	_, err := s.UpsertSignals(ctx, []domain.TradeSignal{sig})
	require.NoError(t, err)

	sig.Outcome = domain.OutcomeActive
	require.NoError(t, s.UpdateSignalOutcome(ctx, sig))

	sig.Status = domain.SignalStatusCancelled
	_, err = s.UpsertSignals(ctx, []domain.TradeSignal{sig})
	require.NoError(t, err)

	got, err := s.GetSignal(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.SignalStatusCancelled, got.Status)
	assert.Equal(t, domain.OutcomeActive, got.Outcome)
}

func TestBarsUpsertRangeAndSeries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bars := []domain.HistoricalBar{
		{Timestamp: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: t0.Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2},
		{Timestamp: t0.Add(2 * time.Hour), Open: 2, High: 3, Low: 1.5, Close: 2.5},
	}
	_, err := s.UpsertBars(ctx, "BTCUSDT", "1h", bars)
	require.NoError(t, err)

	// 同一时间戳覆盖
	_, err = s.UpsertBars(ctx, "BTCUSDT", "1h", []domain.HistoricalBar{{Timestamp: t0, Open: 1, High: 9, Low: 0.5, Close: 1.5}})
	require.NoError(t, err)

	all, err := s.Bars(ctx, "BTCUSDT", "1h", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 9.0, all[0].High)
	assert.Equal(t, t0, all[0].Timestamp)

	ranged, err := s.Bars(ctx, "BTCUSDT", "1h", t0.Add(time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 2.0, ranged[0].Close)

	none, err := s.Bars(ctx, "BTCUSDT", "1d", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, none)

	series, err := s.ListBarSeries(ctx)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 3, series[0].Count)
	assert.Equal(t, t0, series[0].First)
	assert.Equal(t, t0.Add(2*time.Hour), series[0].Last)
}

func TestRunsAndResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.StartRun(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)

	hit := t0.Add(time.Hour)
	results := []domain.AnalysisResult{
		{SignalID: "a", Asset: "BTCUSDT", Direction: domain.DirectionLong, Entry: 100, Outcome: domain.OutcomeTP1Hit,
			ExitPrice: 110, PNL: 10, PNLPercent: 10, EntryTime: t0, HitTime: &hit, HitIndex: 1, BarsScanned: 2},
		{SignalID: "b", Asset: "BTCUSDT", Direction: domain.DirectionLong, Entry: 100, Outcome: domain.OutcomeActive,
			EntryTime: t0.Add(time.Minute), HitIndex: -1, BarsScanned: 3},
	}
	require.NoError(t, s.SaveResults(ctx, runID, results))
	summary := evaluator.Summarize(results)
	require.NoError(t, s.FinishRun(ctx, runID, len(results), &summary, nil))

	got, err := s.ListResults(ctx, ResultFilter{Asset: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, results[0].Outcome, got[0].Outcome)
	require.NotNil(t, got[0].HitTime)
	assert.Equal(t, hit, *got[0].HitTime)
	assert.Nil(t, got[1].HitTime)
	assert.Equal(t, -1, got[1].HitIndex)

	// 第二次运行覆盖同一信号的结果
	run2, err := s.StartRun(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	results[1].Outcome = domain.OutcomeSLHit
	require.NoError(t, s.SaveResults(ctx, run2, results[1:]))
	require.NoError(t, s.FinishRun(ctx, run2, 1, nil, errors.New("partial")))

	one, err := s.GetResult(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, domain.OutcomeSLHit, one.Outcome)

	byRun, err := s.ListResults(ctx, ResultFilter{RunID: run2})
	require.NoError(t, err)
	assert.Len(t, byRun, 1)

	wins, err := s.ListResults(ctx, ResultFilter{Outcome: domain.OutcomeTP1Hit})
	require.NoError(t, err)
	assert.Len(t, wins, 1)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run2, runs[0].ID)
	assert.Equal(t, "partial", runs[0].Error)
	assert.Nil(t, runs[0].Summary)
	require.NotNil(t, runs[1].Summary)
	assert.Equal(t, 1, runs[1].Summary.Wins)
	require.NotNil(t, runs[1].FinishedAt)

	missing, err := s.GetResult(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
