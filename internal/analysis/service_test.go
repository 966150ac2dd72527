package analysis

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/insight"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, mutate func(*Options)) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "signaldesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	opts := Options{
		Store:           st,
		DefaultInterval: "1h",
		Now:             func() time.Time { return t0.Add(48 * time.Hour) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc
}

const manualBody = `[
  {"id":"s1","asset":"btc/usdt","direction":"long","entry":100,"stopLoss":90,"takeProfit1":110,"takeProfit2":120,"timestamp":"2024-03-01T00:00:00Z"},
  {"id":"s2","asset":"BTCUSDT","direction":"short","entry":100,"stopLoss":110,"takeProfit1":90,"timestamp":"2024-03-01T00:00:00Z"},
  {"id":"bad","asset":"BTCUSDT","direction":"long","stopLoss":90}
]`

const barsCSV = `timestamp,open,high,low,close,volume
2024-03-01T00:00:00Z,100,105,95,101,10
2024-03-01T01:00:00Z,101,112,99,111,12
2024-03-01T02:00:00Z,111,111,104,108,9
`

func seed(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	rep, err := svc.ImportManual(ctx, []byte(manualBody))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Accepted)
	assert.Equal(t, 1, rep.Rejected)
	require.Len(t, rep.Errors, 1)

	n, err := svc.ImportBarsCSV(ctx, "btc-usdt", "", strings.NewReader(barsCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunEvaluatesAndWritesBack(t *testing.T) {
	svc := newTestService(t, nil)
	seed(t, svc)
	ctx := context.Background()

	rep, err := svc.Run(ctx, Request{Asset: "BTC/USDT"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.NotZero(t, rep.RunID)

	byID := map[string]domain.AnalysisResult{}
	for _, r := range rep.Results {
		byID[r.SignalID] = r
	}
	assert.Equal(t, domain.OutcomeTP1Hit, byID["s1"].Outcome)
	assert.InDelta(t, 10.0, byID["s1"].PNLPercent, 1e-9)
	// 空头：第二根 bar 最高 112 触及止损 110
	assert.Equal(t, domain.OutcomeSLHit, byID["s2"].Outcome)
	assert.Equal(t, 1, byID["s2"].HitIndex)

	assert.Equal(t, 2, rep.Summary.Total)
	assert.Equal(t, 1, rep.Summary.Wins)
	assert.Equal(t, 1, rep.Summary.Losses)

	sigs, err := svc.Signals(ctx, store.SignalFilter{Asset: "btcusdt"})
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	status := map[string]domain.SignalStatus{}
	for _, s := range sigs {
		status[s.ID] = s.Status
	}
	assert.Equal(t, domain.SignalStatusCompleted, status["s1"])
	assert.Equal(t, domain.SignalStatusStopped, status["s2"])

	results, sum, err := svc.Results(ctx, store.ResultFilter{Asset: "BTCUSDT"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 50.0, sum.WinRate)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(ctx, &buf, store.ResultFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "asset,direction,entry,outcome"))

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, st.Assets)
	require.Len(t, st.Runs, 1)
	require.NotNil(t, st.Runs[0].Summary)
	assert.Equal(t, 2, st.Runs[0].Summary.Total)
	assert.NotEmpty(t, st.Notices)
}

func TestRunExpiryOverride(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	_, err := svc.ImportManual(ctx, []byte(`[{"id":"w","asset":"BTCUSDT","direction":"long","entry":100,"stopLoss":50,"takeProfit1":200,"timestamp":"2024-03-01T00:00:00Z"}]`))
	require.NoError(t, err)
	_, err = svc.ImportBarsCSV(ctx, "BTCUSDT", "1h", strings.NewReader(barsCSV))
	require.NoError(t, err)

	rep, err := svc.Run(ctx, Request{Asset: "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeActive, rep.Results[0].Outcome)

	window := time.Hour
	rep, err = svc.Run(ctx, Request{Asset: "BTCUSDT", ExpiryWindow: &window})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExpired, rep.Results[0].Outcome)
	assert.Equal(t, 108.0, rep.Results[0].ExitPrice)

	sig, err := svc.store.GetSignal(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusCancelled, sig.Status)
}

func TestRunErrors(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Run(ctx, Request{})
	assert.ErrorIs(t, err, ErrNoAsset)

	_, err = svc.Run(ctx, Request{Asset: "ETHUSDT"})
	assert.ErrorIs(t, err, ErrNoSignals)

	_, err = svc.ImportManual(ctx, []byte(manualBody))
	require.NoError(t, err)
	_, err = svc.Run(ctx, Request{Asset: "BTCUSDT"})
	assert.ErrorIs(t, err, ErrNoHistoricalData)
}

func TestBarsFallsBackToRemoteOnce(t *testing.T) {
	calls := 0
	remote := marketdata.SourceFunc(func(_ context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
		calls++
		assert.Equal(t, "ETHUSDT", symbol)
		return []domain.HistoricalBar{
			{Timestamp: t0, Open: 1, High: 2, Low: 1, Close: 2},
			{Timestamp: t0.Add(time.Hour), Open: 2, High: 3, Low: 2, Close: 3},
		}, nil
	})
	svc := newTestService(t, func(o *Options) { o.Bars = remote })
	ctx := context.Background()

	bars, err := svc.Bars(ctx, "eth/usdt", "1h", t0, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	bars, err = svc.Bars(ctx, "ETHUSDT", "1h", t0, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, calls)
}

func TestBarsRemoteFailureIsNotice(t *testing.T) {
	remote := marketdata.SourceFunc(func(context.Context, string, string, time.Time, time.Time) ([]domain.HistoricalBar, error) {
		return nil, errors.New("upstream down")
	})
	svc := newTestService(t, func(o *Options) { o.Bars = remote })

	bars, err := svc.Bars(context.Background(), "BTCUSDT", "1h", t0, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, bars)
	n, ok := svc.Notices().Latest()
	require.True(t, ok)
	assert.Contains(t, n.Message, "upstream down")
}

func TestIngestWebhookAutoDetect(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	body := `{"signals":[{"Ticker":"ETH/USDT","Direction":"sell","Entry Price":"2,000","Stop Loss":2100,"Take Profit 1":1900}]}`
	rep, err := svc.IngestWebhook(ctx, "auto", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Accepted)

	sigs, err := svc.Signals(ctx, store.SignalFilter{Asset: "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, domain.DirectionShort, sigs[0].Direction)
	assert.Equal(t, 2000.0, sigs[0].Entry)
	assert.Equal(t, t0.Add(48*time.Hour), sigs[0].OpenTime)

	_, err = svc.IngestWebhook(ctx, "telegram", []byte(body))
	assert.Error(t, err)
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "broken" }
func (failingGenerator) Generate(context.Context, insight.Request) (insight.Insight, error) {
	return insight.Insight{}, errors.New("quota exceeded")
}

func TestInsightFallsBackToRules(t *testing.T) {
	svc := newTestService(t, func(o *Options) { o.Insight = failingGenerator{} })
	seed(t, svc)
	ctx := context.Background()

	_, err := svc.Run(ctx, Request{Asset: "BTCUSDT"})
	require.NoError(t, err)

	in, err := svc.Insight(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "rule", in.Provider)
	assert.Contains(t, in.Text, "BTCUSDT")

	_, err = svc.Insight(ctx, "missing")
	assert.ErrorIs(t, err, ErrSignalNotFound)
}

func TestReimportKeepsEvaluatedStatus(t *testing.T) {
	svc := newTestService(t, nil)
	seed(t, svc)
	ctx := context.Background()

	_, err := svc.Run(ctx, Request{Asset: "BTCUSDT"})
	require.NoError(t, err)

	_, err = svc.ImportManual(ctx, []byte(manualBody))
	require.NoError(t, err)

	completed, err := svc.Signals(ctx, store.SignalFilter{Status: domain.SignalStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "s1", completed[0].ID)
	assert.Equal(t, domain.OutcomeTP1Hit, completed[0].Outcome)
}

func TestIngestWebhookAutoDetectsLowercaseAlert(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	body := `{"ticker":"BTCUSDT","action":"buy","price":"68500","time":"2024-03-01T00:00:00Z"}`
	rep, err := svc.IngestWebhook(ctx, "auto", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Accepted)
	assert.Zero(t, rep.Rejected)

	sigs, err := svc.Signals(ctx, store.SignalFilter{Asset: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "tradingview", sigs[0].Provider)
	assert.Equal(t, domain.DirectionLong, sigs[0].Direction)
}

func TestIngestWebhookWithoutTimestampKeepsDistinctAlerts(t *testing.T) {
	now := t0
	svc := newTestService(t, func(o *Options) { o.Now = func() time.Time { return now } })
	ctx := context.Background()

	body := []byte(`{"ticker":"BTCUSDT","action":"buy","price":"68500"}`)
	_, err := svc.IngestWebhook(ctx, "tradingview", body)
	require.NoError(t, err)
	_, err = svc.IngestWebhook(ctx, "tradingview", body)
	require.NoError(t, err)
	now = t0.Add(time.Hour)
	_, err = svc.IngestWebhook(ctx, "tradingview", body)
	require.NoError(t, err)

	sigs, err := svc.Signals(ctx, store.SignalFilter{Asset: "BTCUSDT"})
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
}

func TestBarsBackfillsWhenStoreStartsLate(t *testing.T) {
	var gotStart time.Time
	calls := 0
	remote := marketdata.SourceFunc(func(_ context.Context, _, _ string, start, _ time.Time) ([]domain.HistoricalBar, error) {
		calls++
		gotStart = start
		out := make([]domain.HistoricalBar, 0, 12)
		for i := 0; i < 12; i++ {
			ts := t0.Add(time.Duration(i) * time.Hour)
			out = append(out, domain.HistoricalBar{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100})
		}
		// 第 2 根触及止损
		out[2].Low = 80
		return out, nil
	})
	svc := newTestService(t, func(o *Options) { o.Bars = remote })
	ctx := context.Background()

	// 库内只有实时流写入的较晚 bar
	for i := 10; i < 12; i++ {
		svc.StoreStreamBar("BTCUSDT", "1h", domain.HistoricalBar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: 100, High: 130, Low: 99, Close: 125,
		})
	}

	bars, err := svc.Bars(ctx, "BTCUSDT", "1h", t0, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 12)
	assert.Equal(t, 1, calls)
	assert.Equal(t, t0, gotStart)
	assert.Equal(t, t0, bars[0].Timestamp)
	assert.Equal(t, 80.0, bars[2].Low)

	_, err = svc.ImportManual(ctx, []byte(`[{"id":"late","asset":"BTCUSDT","direction":"long","entry":100,"stopLoss":90,"takeProfit1":120,"timestamp":"2024-03-01T00:00:00Z"}]`))
	require.NoError(t, err)
	rep, err := svc.Run(ctx, Request{Asset: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, domain.OutcomeSLHit, rep.Results[0].Outcome)
	assert.Equal(t, 2, rep.Results[0].HitIndex)

	// 回填后库内已覆盖 start，不再请求远程
	_, err = svc.Bars(ctx, "BTCUSDT", "1h", t0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
