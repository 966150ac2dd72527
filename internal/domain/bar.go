package domain

import "time"

// HistoricalBar 一个采样区间的 OHLCV。
// 入库后不可变；调用方保证按时间升序，这里不做强制。
type HistoricalBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
