package insight

import (
	"context"
	"strings"
	"text/template"
	"time"
)

const ruleTemplate = `{{.Asset}} {{.Direction}} setup{{if .Provider}} from {{.Provider}}{{end}}{{if .Timeframe}} on the {{.Timeframe}} chart{{end}}: entry {{.Entry}}
{{- if .HasStop}}, stop {{.StopLoss}} ({{.RiskPct}}% risk){{else}}, no stop-loss defined{{end}}.
{{- range .Targets}} TP{{.Level}} {{.Price}} (+{{.Pct}}%).{{end}}
{{- if .RR}} Reward/risk to the first target is {{.RR}}.{{end}}
{{- if .Evaluated}}
{{- if .Win}} Backtest: {{.Outcome}} after {{.Bars}} bars, exit {{.ExitPrice}} for {{.PNLPercent}}%.
{{- else if .Loss}} Backtest: stopped out after {{.Bars}} bars at {{.ExitPrice}} ({{.PNLPercent}}%).
{{- else if eq .Outcome "Expired"}} Backtest: no level reached before expiry, marked out at {{.ExitPrice}} ({{.PNLPercent}}%).
{{- else if eq .Outcome "No Data"}} Backtest: no price history covers the entry time.
{{- else}} Backtest: still open after {{.Bars}} bars, neither stop nor target touched.
{{- end}}
{{- else}} Not evaluated yet.{{end}}`

var ruleTmpl = template.Must(template.New("insight").Parse(ruleTemplate))

// RuleGenerator 纯模板实现，同样的输入总是得到同样的文字
type RuleGenerator struct {
	now func() time.Time
}

func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{now: time.Now}
}

func (g *RuleGenerator) Name() string { return "rule" }

func (g *RuleGenerator) Generate(_ context.Context, req Request) (Insight, error) {
	var sb strings.Builder
	if err := ruleTmpl.Execute(&sb, buildFacts(req)); err != nil {
		return Insight{}, err
	}
	return Insight{
		SignalID:    req.Signal.ID,
		Provider:    g.Name(),
		Text:        strings.TrimSpace(sb.String()),
		GeneratedAt: g.now(),
	}, nil
}
