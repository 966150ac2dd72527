package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	"github.com/betbot/signaldesk/internal/report"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const signalsFile = `[
 {"asset":"ETHUSDT","direction":"long","entry":3000,"stopLoss":2900,"takeProfit1":3100,"takeProfit2":3200,"timestamp":"2024-05-01 00:00"},
 {"asset":"ETHUSDT","direction":"short","entry":3000,"stopLoss":3300,"takeProfit1":2500,"timestamp":"2024-05-01 00:00"},
 {"asset":"BTCUSDT","direction":"long","entry":60000,"stopLoss":59000,"takeProfit1":61000,"timestamp":"2024-05-01 00:00"},
 {"asset":"","entry":1}
]`

const barsFile = `time,open,high,low,close
1714521600,3000,3050,2950,3020
1714525200,3020,3210,3010,3190
`

func TestEvaluateFiles(t *testing.T) {
	o := options{
		signalsPath: writeTemp(t, "signals.json", signalsFile),
		barsPath:    writeTemp(t, "bars.csv", barsFile),
		asset:       "eth/usdt",
		expiry:      time.Hour,
		now:         "2024-05-03",
	}
	results, rejected, err := evaluateFiles(o)
	require.NoError(t, err)
	assert.Equal(t, 1, rejected)
	require.Len(t, results, 2)

	// 第二根 bar 同时越过 TP1 与 TP2，取最高一级
	assert.Equal(t, domain.OutcomeTP2Hit, results[0].Outcome)
	assert.Equal(t, domain.OutcomeExpired, results[1].Outcome)
	assert.Equal(t, 3190.0, results[1].ExitPrice)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeResults(out, results))
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	back, err := report.ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, back, 2)
}

func TestEvaluateFilesErrors(t *testing.T) {
	_, _, err := evaluateFiles(options{
		signalsPath: writeTemp(t, "signals.json", signalsFile),
		barsPath:    writeTemp(t, "bars.csv", "time,open,high,low,close\n"),
	})
	require.Error(t, err)

	_, _, err = evaluateFiles(options{
		signalsPath: writeTemp(t, "signals.json", signalsFile),
		barsPath:    writeTemp(t, "bars.csv", barsFile),
		asset:       "SOLUSDT",
	})
	require.Error(t, err)
}

func TestRenderTable(t *testing.T) {
	hit := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	results := []domain.AnalysisResult{
		{Asset: "ETHUSDT", Direction: domain.DirectionLong, Entry: 3000, Outcome: domain.OutcomeTP1Hit, ExitPrice: 3100, PNLPercent: 3.33, HitTime: &hit},
		{Asset: "ETHUSDT", Direction: domain.DirectionShort, Entry: 3000, Outcome: domain.OutcomeNoData},
	}
	out := renderTable(results)
	assert.Contains(t, out, "TP1 Hit")
	assert.Contains(t, out, "No Data")
	assert.Contains(t, out, "+3.33")

	sum := summaryLine(evaluator.Summarize(results))
	assert.True(t, strings.HasPrefix(sum, "signals 2 | wins 1"))
}

func TestViewerFilterAndScroll(t *testing.T) {
	results := []domain.AnalysisResult{
		{Asset: "A", Outcome: domain.OutcomeTP1Hit},
		{Asset: "B", Outcome: domain.OutcomeSLHit},
		{Asset: "C", Outcome: domain.OutcomeTP1Hit},
	}
	var m tea.Model = newViewer(results, evaluator.Summarize(results))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.(viewer).cursor)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	v := m.(viewer)
	assert.Len(t, v.shown, 2)
	assert.Equal(t, 0, v.cursor)
	assert.Contains(t, v.View(), "[TP1 Hit]")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}
