// Package report 把回测结果导出为 CSV（下载用），并能重新读回。
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
)

// Columns 导出列（顺序固定）
var Columns = []string{"asset", "direction", "entry", "outcome", "pnl", "pnl_pct", "entry_time", "hit_time"}

const timeLayout = time.RFC3339

// WriteCSV 每个结果一行；未触发的 hit_time 留空
func WriteCSV(w io.Writer, results []domain.AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Asset,
			string(r.Direction),
			formatFloat(r.Entry),
			string(r.Outcome),
			formatFloat(r.PNL),
			strconv.FormatFloat(r.PNLPercent, 'f', 2, 64),
			formatTime(r.EntryTime),
			"",
		}
		if r.HitTime != nil {
			row[7] = formatTime(*r.HitTime)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV 解析 WriteCSV 的输出（按表头名定位列）
func ReadCSV(r io.Reader) ([]domain.AnalysisResult, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var out []domain.AnalysisResult
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		res, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func parseRow(row []string, idx map[string]int) (domain.AnalysisResult, error) {
	get := func(c string) string { return strings.TrimSpace(row[idx[c]]) }

	res := domain.AnalysisResult{
		Asset:     get("asset"),
		Direction: domain.Direction(get("direction")),
		HitIndex:  -1,
	}
	outcome, ok := domain.ParseOutcome(get("outcome"))
	if !ok {
		return res, fmt.Errorf("unknown outcome %q", get("outcome"))
	}
	res.Outcome = outcome

	var err error
	if res.Entry, err = strconv.ParseFloat(get("entry"), 64); err != nil {
		return res, fmt.Errorf("entry: %w", err)
	}
	if res.PNL, err = strconv.ParseFloat(get("pnl"), 64); err != nil {
		return res, fmt.Errorf("pnl: %w", err)
	}
	if res.PNLPercent, err = strconv.ParseFloat(get("pnl_pct"), 64); err != nil {
		return res, fmt.Errorf("pnl_pct: %w", err)
	}
	if s := get("entry_time"); s != "" {
		if res.EntryTime, err = time.Parse(timeLayout, s); err != nil {
			return res, fmt.Errorf("entry_time: %w", err)
		}
	}
	if s := get("hit_time"); s != "" {
		t, err := time.Parse(timeLayout, s)
		if err != nil {
			return res, fmt.Errorf("hit_time: %w", err)
		}
		res.HitTime = &t
	}
	return res, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
