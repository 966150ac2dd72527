package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
)

// Run 一次回测运行记录
type Run struct {
	ID         int64              `json:"id"`
	Asset      string             `json:"asset"`
	Interval   string             `json:"interval"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
	Signals    int                `json:"signals"`
	Summary    *evaluator.Summary `json:"summary,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// StartRun 记录运行开始，返回 run id
func (s *Store) StartRun(ctx context.Context, asset, interval string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO analysis_runs (asset, interval, started_at) VALUES (?,?,?)
`, asset, interval, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("insert analysis run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun 写入汇总；runErr 非空时记录失败原因
func (s *Store) FinishRun(ctx context.Context, runID int64, signals int, summary *evaluator.Summary, runErr error) error {
	var summaryJSON, errText any
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		summaryJSON = string(b)
	}
	if runErr != nil {
		errText = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE analysis_runs SET finished_at=?, signals=?, summary_json=?, error=? WHERE id=?
`, formatTime(s.now()), signals, summaryJSON, errText, runID)
	if err != nil {
		return fmt.Errorf("finish analysis run: %w", err)
	}
	return nil
}

// ListRuns 最近的运行，最新在前
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, asset, interval, started_at, finished_at, signals, summary_json, error
FROM analysis_runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                          Run
			started                    string
			finished, summary, errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Asset, &r.Interval, &started, &finished, &r.Signals, &summary, &errText); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			r.FinishedAt = &t
		}
		if summary.Valid && summary.String != "" {
			var sm evaluator.Summary
			if err := json.Unmarshal([]byte(summary.String), &sm); err == nil {
				r.Summary = &sm
			}
		}
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveResults 写入一次运行的结果；同一信号只保留最近一次结果
func (s *Store) SaveResults(ctx context.Context, runID int64, results []domain.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO analysis_results
  (signal_id,run_id,asset,direction,entry,outcome,exit_price,pnl,pnl_pct,entry_time,hit_time,hit_index,bars_scanned,evaluated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			r.SignalID, runID, r.Asset, string(r.Direction), r.Entry, string(r.Outcome), r.ExitPrice,
			r.PNL, r.PNLPercent, formatTime(r.EntryTime), nullableTime(r.HitTime), r.HitIndex, r.BarsScanned, now,
		); err != nil {
			return fmt.Errorf("save result %s: %w", r.SignalID, err)
		}
	}
	return tx.Commit()
}

const resultColumns = `signal_id,asset,direction,entry,outcome,exit_price,pnl,pnl_pct,entry_time,hit_time,hit_index,bars_scanned`

// ResultFilter 结果过滤条件（空值不过滤）
type ResultFilter struct {
	Asset   string
	Outcome domain.Outcome
	RunID   int64
}

// ListResults 按入场时间升序
func (s *Store) ListResults(ctx context.Context, f ResultFilter) ([]domain.AnalysisResult, error) {
	var (
		where []string
		args  []any
	)
	if f.Asset != "" {
		where = append(where, "asset=?")
		args = append(args, f.Asset)
	}
	if f.Outcome != "" {
		where = append(where, "outcome=?")
		args = append(args, string(f.Outcome))
	}
	if f.RunID > 0 {
		where = append(where, "run_id=?")
		args = append(args, f.RunID)
	}
	q := `SELECT ` + resultColumns + ` FROM analysis_results`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY entry_time ASC, signal_id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetResult 不存在返回 nil, nil
func (s *Store) GetResult(ctx context.Context, signalID string) (*domain.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM analysis_results WHERE signal_id=?`, signalID)
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func scanResult(sc scanner) (domain.AnalysisResult, error) {
	var r domain.AnalysisResult
	var direction, outcome, entryTime string
	var hitTime sql.NullString
	if err := sc.Scan(&r.SignalID, &r.Asset, &direction, &r.Entry, &outcome, &r.ExitPrice, &r.PNL, &r.PNLPercent,
		&entryTime, &hitTime, &r.HitIndex, &r.BarsScanned); err != nil {
		return r, err
	}
	r.Direction = domain.Direction(direction)
	r.Outcome = domain.Outcome(outcome)
	r.EntryTime = parseTime(entryTime)
	if hitTime.Valid && hitTime.String != "" {
		t := parseTime(hitTime.String)
		r.HitTime = &t
	}
	return r, nil
}
