package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRoundTrip(t *testing.T) {
	hit := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	results := []domain.AnalysisResult{
		{Asset: "BTCUSDT", Direction: domain.DirectionLong, Entry: 68500, Outcome: domain.OutcomeSLHit,
			PNL: -1300, PNLPercent: -1.8978, EntryTime: hit.Add(-2 * time.Hour), HitTime: &hit},
		{Asset: "ETH, USDT", Direction: domain.DirectionShort, Entry: 3500, Outcome: domain.OutcomeTP2Hit,
			PNL: 200, PNLPercent: 5.714, EntryTime: hit, HitTime: &hit},
		{Asset: "SOLUSDT", Direction: domain.DirectionLong, Entry: 150, Outcome: domain.OutcomeActive},
		{Asset: "ADAUSDT", Direction: domain.DirectionLong, Entry: 0.45, Outcome: domain.OutcomeNoData},
		{Asset: "XRPUSDT", Direction: domain.DirectionShort, Entry: 0.6, Outcome: domain.OutcomeExpired, PNL: 0.01},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))
	assert.True(t, strings.HasPrefix(buf.String(), "asset,direction,entry,outcome,pnl,pnl_pct,entry_time,hit_time\n"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, back, len(results))
	for i := range results {
		assert.Equal(t, results[i].Outcome, back[i].Outcome)
		assert.Equal(t, results[i].Asset, back[i].Asset)
		assert.Equal(t, results[i].Entry, back[i].Entry)
	}
	assert.Equal(t, -1.9, back[0].PNLPercent)
	require.NotNil(t, back[0].HitTime)
	assert.True(t, hit.Equal(*back[0].HitTime))
	assert.Nil(t, back[2].HitTime)
	assert.True(t, back[2].EntryTime.IsZero())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("asset,direction\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = ReadCSV(strings.NewReader(strings.Join(Columns, ",") + "\nBTC,long,1,Moon,0,0,,\n"))
	assert.ErrorContains(t, err, "unknown outcome")

	res, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res)
}
