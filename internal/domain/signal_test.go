package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeProfitsSkipsUnset(t *testing.T) {
	s := TradeSignal{TakeProfit1: 100, TakeProfit3: 120}
	assert.Equal(t, []TakeProfitLevel{{Level: 1, Price: 100}, {Level: 3, Price: 120}}, s.TakeProfits())

	s.SetTakeProfit(2, 110)
	assert.Equal(t, 110.0, s.TakeProfit(2))
	assert.Len(t, s.TakeProfits(), 3)
	assert.Zero(t, s.TakeProfit(4))
}

func TestValidate(t *testing.T) {
	ok := TradeSignal{ID: "a", Asset: "BTC", Entry: 1, Direction: DirectionLong}
	assert.NoError(t, ok.Validate())

	noAsset := ok
	noAsset.Asset = "  "
	assert.Error(t, noAsset.Validate())

	zeroEntry := ok
	zeroEntry.Entry = 0
	assert.Error(t, zeroEntry.Validate())
}

func TestParsers(t *testing.T) {
	d, ok := ParseDirection(" SELL ")
	assert.True(t, ok)
	assert.Equal(t, DirectionShort, d)
	_, ok = ParseDirection("sideways")
	assert.False(t, ok)

	st, ok := ParseSignalStatus("SL Hit")
	assert.True(t, ok)
	assert.Equal(t, SignalStatusStopped, st)

	mt, ok := ParseMarketType("FX")
	assert.True(t, ok)
	assert.Equal(t, MarketTypeForex, mt)

	o, ok := ParseOutcome("TP2 Hit")
	assert.True(t, ok)
	assert.True(t, o.IsWin())
	assert.Equal(t, OutcomeTP3Hit, TakeProfitOutcome(3))
	_, ok = ParseOutcome("tp2 hit")
	assert.False(t, ok)
}
