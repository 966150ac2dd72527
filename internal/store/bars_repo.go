package store

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
)

// UpsertBars 按 (symbol, interval, ts) 去重写入
func (s *Store) UpsertBars(ctx context.Context, symbol, interval string, bars []domain.HistoricalBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO bars (symbol,interval,ts,open,high,low,close,volume)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(symbol,interval,ts) DO UPDATE SET
  open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close, volume=excluded.volume
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, interval, b.Timestamp.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return 0, fmt.Errorf("upsert bar %s %s %s: %w", symbol, interval, b.Timestamp.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bars), nil
}

// Bars 读取 [start, end] 内的 bar（升序）；实现 marketdata.Source
func (s *Store) Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
	q := `SELECT ts,open,high,low,close,volume FROM bars WHERE symbol=? AND interval=?`
	args := []any{symbol, interval}
	if !start.IsZero() {
		q += ` AND ts>=?`
		args = append(args, start.UnixMilli())
	}
	if !end.IsZero() {
		q += ` AND ts<=?`
		args = append(args, end.UnixMilli())
	}
	q += ` ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoricalBar
	for rows.Next() {
		var (
			b  domain.HistoricalBar
			ts int64
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// BarSeries 一个 (symbol, interval) 序列的概况
type BarSeries struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Count    int       `json:"count"`
	First    time.Time `json:"first"`
	Last     time.Time `json:"last"`
}

// ListBarSeries 已入库的全部序列
func (s *Store) ListBarSeries(ctx context.Context) ([]BarSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT symbol, interval, COUNT(*), MIN(ts), MAX(ts) FROM bars GROUP BY symbol, interval ORDER BY symbol, interval
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BarSeries
	for rows.Next() {
		var (
			bs          BarSeries
			first, last int64
		)
		if err := rows.Scan(&bs.Symbol, &bs.Interval, &bs.Count, &first, &last); err != nil {
			return nil, err
		}
		bs.First = time.UnixMilli(first).UTC()
		bs.Last = time.UnixMilli(last).UTC()
		out = append(out, bs)
	}
	return out, rows.Err()
}
