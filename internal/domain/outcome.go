package domain

import (
	"fmt"
	"time"
)

// Outcome 回测结果标签（字面值对外可见，CSV/JSON 中原样输出）
type Outcome string

const (
	OutcomeSLHit   Outcome = "SL Hit"
	OutcomeTP1Hit  Outcome = "TP1 Hit"
	OutcomeTP2Hit  Outcome = "TP2 Hit"
	OutcomeTP3Hit  Outcome = "TP3 Hit"
	OutcomeActive  Outcome = "Active"
	OutcomeExpired Outcome = "Expired"
	OutcomeNoData  Outcome = "No Data"
)

// TakeProfitOutcome 第 n 个止盈对应的标签
func TakeProfitOutcome(n int) Outcome {
	return Outcome(fmt.Sprintf("TP%d Hit", n))
}

// IsWin 是否止盈
func (o Outcome) IsWin() bool {
	return o == OutcomeTP1Hit || o == OutcomeTP2Hit || o == OutcomeTP3Hit
}

// IsResolved 是否已触发止损或止盈
func (o Outcome) IsResolved() bool {
	return o == OutcomeSLHit || o.IsWin()
}

// ParseOutcome 解析标签
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case OutcomeSLHit, OutcomeTP1Hit, OutcomeTP2Hit, OutcomeTP3Hit, OutcomeActive, OutcomeExpired, OutcomeNoData:
		return o, true
	}
	return "", false
}

// AnalysisResult 单个信号的回测结果
type AnalysisResult struct {
	SignalID    string     `json:"signalId"`
	Asset       string     `json:"asset"`
	Direction   Direction  `json:"direction"`
	Entry       float64    `json:"entry"`
	Outcome     Outcome    `json:"outcome"`
	ExitPrice   float64    `json:"exitPrice"`
	PNL         float64    `json:"pnl"`
	PNLPercent  float64    `json:"pnlPercent"`
	EntryTime   time.Time  `json:"entryTime"`
	HitTime     *time.Time `json:"hitTime,omitempty"`
	HitIndex    int        `json:"hitIndex"` // 在过滤后的 bar 序列中的下标，未触发为 -1
	BarsScanned int        `json:"barsScanned"`
}
