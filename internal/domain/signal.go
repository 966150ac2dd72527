package domain

import (
	"fmt"
	"strings"
	"time"
)

// Direction 信号方向
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// SignalStatus 信号生命周期状态：active -> completed | stopped | cancelled
type SignalStatus string

const (
	SignalStatusActive    SignalStatus = "active"
	SignalStatusCompleted SignalStatus = "completed"
	SignalStatusStopped   SignalStatus = "stopped"
	SignalStatusCancelled SignalStatus = "cancelled"
)

// MarketType 市场类型
type MarketType string

const (
	MarketTypeCrypto      MarketType = "crypto"
	MarketTypeForex       MarketType = "forex"
	MarketTypeStocks      MarketType = "stocks"
	MarketTypeCommodities MarketType = "commodities"
)

// MaxTakeProfits 每个信号最多三个止盈价位
const MaxTakeProfits = 3

// TradeSignal 规范化后的交易信号。
// 由入口（feed/webhook/手工导入）创建，之后只由回测结果更新 Status/Outcome/PNL 字段。
type TradeSignal struct {
	ID          string       `json:"id"`
	Asset       string       `json:"asset"`
	Direction   Direction    `json:"direction"`
	Entry       float64      `json:"entry"`
	StopLoss    float64      `json:"stopLoss"`
	TakeProfit1 float64      `json:"takeProfit1"`
	TakeProfit2 float64      `json:"takeProfit2,omitempty"`
	TakeProfit3 float64      `json:"takeProfit3,omitempty"`
	OpenTime    time.Time    `json:"timestamp"`
	Status      SignalStatus `json:"status"`
	Provider    string       `json:"provider"`
	MarketType  MarketType   `json:"marketType"`
	Timeframe   string       `json:"timeframe,omitempty"`
	Notes       string       `json:"notes,omitempty"`

	Outcome    Outcome `json:"outcome,omitempty"`
	PNL        float64 `json:"pnl,omitempty"`
	PNLPercent float64 `json:"pnlPercent,omitempty"`
}

// TakeProfitLevel 一个止盈价位（Level 从 1 开始）
type TakeProfitLevel struct {
	Level int
	Price float64
}

// IsLong 是否做多
func (s *TradeSignal) IsLong() bool {
	return s.Direction != DirectionShort
}

// TakeProfit 返回第 n 个止盈价（1..3），不存在返回 0
func (s *TradeSignal) TakeProfit(n int) float64 {
	switch n {
	case 1:
		return s.TakeProfit1
	case 2:
		return s.TakeProfit2
	case 3:
		return s.TakeProfit3
	}
	return 0
}

// SetTakeProfit 设置第 n 个止盈价（1..3）
func (s *TradeSignal) SetTakeProfit(n int, price float64) {
	switch n {
	case 1:
		s.TakeProfit1 = price
	case 2:
		s.TakeProfit2 = price
	case 3:
		s.TakeProfit3 = price
	}
}

// TakeProfits 返回已设置（>0）的止盈价位，按 Level 升序
func (s *TradeSignal) TakeProfits() []TakeProfitLevel {
	out := make([]TakeProfitLevel, 0, MaxTakeProfits)
	for n := 1; n <= MaxTakeProfits; n++ {
		if p := s.TakeProfit(n); p > 0 {
			out = append(out, TakeProfitLevel{Level: n, Price: p})
		}
	}
	return out
}

// Validate 信号最小可用性：资产非空且入场价为正
func (s *TradeSignal) Validate() error {
	if strings.TrimSpace(s.Asset) == "" {
		return fmt.Errorf("signal %s: asset is empty", s.ID)
	}
	if s.Entry <= 0 {
		return fmt.Errorf("signal %s: entry price must be positive, got %v", s.ID, s.Entry)
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return fmt.Errorf("signal %s: unknown direction %q", s.ID, s.Direction)
	}
	return nil
}

// ParseDirection 解析方向（long/buy/bullish, short/sell/bearish）
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "bull", "bullish", "up":
		return DirectionLong, true
	case "short", "sell", "bear", "bearish", "down":
		return DirectionShort, true
	}
	return "", false
}

// ParseSignalStatus 解析状态，兼容常见写法
func ParseSignalStatus(s string) (SignalStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "open", "running", "pending":
		return SignalStatusActive, true
	case "completed", "complete", "closed", "tp hit", "tp1 hit", "tp2 hit", "tp3 hit", "win":
		return SignalStatusCompleted, true
	case "stopped", "sl hit", "stop loss", "loss":
		return SignalStatusStopped, true
	case "cancelled", "canceled", "expired":
		return SignalStatusCancelled, true
	}
	return "", false
}

// ParseMarketType 解析市场类型
func ParseMarketType(s string) (MarketType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crypto", "cryptocurrency":
		return MarketTypeCrypto, true
	case "forex", "fx":
		return MarketTypeForex, true
	case "stocks", "stock", "equity", "equities":
		return MarketTypeStocks, true
	case "commodities", "commodity":
		return MarketTypeCommodities, true
	}
	return "", false
}
