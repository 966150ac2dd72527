package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/betbot/signaldesk/internal/domain"
)

const signalColumns = `id,asset,direction,entry,stop_loss,tp1,tp2,tp3,open_time,status,provider,market_type,timeframe,notes,outcome,pnl,pnl_pct`

// UpsertSignals 批量写入信号；已存在的同 ID 信号被新数据覆盖。
// 回测结果字段保留；已有终态结果时状态也保留。
func (s *Store) UpsertSignals(ctx context.Context, signals []domain.TradeSignal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO signals (id,asset,direction,entry,stop_loss,tp1,tp2,tp3,open_time,status,provider,market_type,timeframe,notes,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  asset=excluded.asset, direction=excluded.direction, entry=excluded.entry, stop_loss=excluded.stop_loss,
  tp1=excluded.tp1, tp2=excluded.tp2, tp3=excluded.tp3, open_time=excluded.open_time,
  status=CASE WHEN signals.outcome IN ('', 'Active', 'No Data') THEN excluded.status ELSE signals.status END,
  provider=excluded.provider, market_type=excluded.market_type, timeframe=excluded.timeframe, notes=excluded.notes,
  updated_at=excluded.updated_at
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for _, sig := range signals {
		if _, err := stmt.ExecContext(ctx,
			sig.ID, sig.Asset, string(sig.Direction), sig.Entry, sig.StopLoss,
			sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3, formatTime(sig.OpenTime),
			string(sig.Status), sig.Provider, string(sig.MarketType), sig.Timeframe, sig.Notes,
			now, now,
		); err != nil {
			return 0, fmt.Errorf("upsert signal %s: %w", sig.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(signals), nil
}

// GetSignal 不存在返回 nil, nil
func (s *Store) GetSignal(ctx context.Context, id string) (*domain.TradeSignal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE id=?`, id)
	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sig, nil
}

// SignalFilter 列表过滤条件（空值不过滤）
type SignalFilter struct {
	Asset    string
	Status   domain.SignalStatus
	Provider string
	IDs      []string
	Limit    int
}

// ListSignals 按开仓时间升序
func (s *Store) ListSignals(ctx context.Context, f SignalFilter) ([]domain.TradeSignal, error) {
	var (
		where []string
		args  []any
	)
	if f.Asset != "" {
		where = append(where, "asset=?")
		args = append(args, f.Asset)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Provider != "" {
		where = append(where, "provider=?")
		args = append(args, f.Provider)
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(f.IDs)), ",")+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	q := `SELECT ` + signalColumns + ` FROM signals`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY open_time ASC, id ASC`
	if f.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TradeSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// UpdateSignalOutcome 回测后回写状态与收益
func (s *Store) UpdateSignalOutcome(ctx context.Context, sig domain.TradeSignal) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE signals SET status=?, outcome=?, pnl=?, pnl_pct=?, updated_at=? WHERE id=?
`, string(sig.Status), string(sig.Outcome), sig.PNL, sig.PNLPercent, formatTime(s.now()), sig.ID)
	if err != nil {
		return fmt.Errorf("update signal outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update signal outcome: signal %s not found", sig.ID)
	}
	return nil
}

// SignalAssets 有信号的标的（去重、排序）
func (s *Store) SignalAssets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT asset FROM signals ORDER BY asset`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSignal(sc scanner) (domain.TradeSignal, error) {
	var sig domain.TradeSignal
	var direction, openTime, status, market, outcome string
	if err := sc.Scan(&sig.ID, &sig.Asset, &direction, &sig.Entry, &sig.StopLoss,
		&sig.TakeProfit1, &sig.TakeProfit2, &sig.TakeProfit3, &openTime, &status,
		&sig.Provider, &market, &sig.Timeframe, &sig.Notes, &outcome, &sig.PNL, &sig.PNLPercent); err != nil {
		return sig, err
	}
	sig.Direction = domain.Direction(direction)
	sig.OpenTime = parseTime(openTime)
	sig.Status = domain.SignalStatus(status)
	sig.MarketType = domain.MarketType(market)
	sig.Outcome = domain.Outcome(outcome)
	return sig, nil
}
