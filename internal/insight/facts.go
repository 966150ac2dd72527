package insight

import (
	"github.com/betbot/signaldesk/internal/domain"
	"github.com/shopspring/decimal"
)

// facts 模板和提示词共用的派生数据
type facts struct {
	Asset     string
	Direction string
	Provider  string
	Timeframe string
	Entry     string
	StopLoss  string
	Targets   []target
	RiskPct   string
	RewardPct string
	RR        string
	HasStop   bool

	Evaluated  bool
	Outcome    string
	Win        bool
	Loss       bool
	ExitPrice  string
	PNLPercent string
	Bars       int
}

type target struct {
	Level int
	Price string
	Pct   string
}

func pctFrom(entry, price decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	return price.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).Abs()
}

func buildFacts(req Request) facts {
	sig := req.Signal
	entry := decimal.NewFromFloat(sig.Entry)
	f := facts{
		Asset:     sig.Asset,
		Direction: "long",
		Provider:  sig.Provider,
		Timeframe: sig.Timeframe,
		Entry:     entry.String(),
		HasStop:   sig.StopLoss > 0,
	}
	if !sig.IsLong() {
		f.Direction = "short"
	}

	var risk decimal.Decimal
	if f.HasStop {
		stop := decimal.NewFromFloat(sig.StopLoss)
		f.StopLoss = stop.String()
		risk = pctFrom(entry, stop)
		f.RiskPct = risk.StringFixed(2)
	}
	for _, tp := range sig.TakeProfits() {
		p := decimal.NewFromFloat(tp.Price)
		f.Targets = append(f.Targets, target{Level: tp.Level, Price: p.String(), Pct: pctFrom(entry, p).StringFixed(2)})
	}
	if len(f.Targets) > 0 {
		reward := pctFrom(entry, decimal.NewFromFloat(sig.TakeProfit(f.Targets[0].Level)))
		f.RewardPct = reward.StringFixed(2)
		if risk.IsPositive() {
			f.RR = reward.Div(risk).StringFixed(2)
		}
	}

	if r := req.Result; r != nil {
		f.Evaluated = true
		f.Outcome = string(r.Outcome)
		f.Win = r.Outcome.IsWin()
		f.Loss = r.Outcome == domain.OutcomeSLHit
		f.ExitPrice = decimal.NewFromFloat(r.ExitPrice).String()
		f.PNLPercent = decimal.NewFromFloat(r.PNLPercent).StringFixed(2)
		f.Bars = r.BarsScanned
	}
	return f
}
