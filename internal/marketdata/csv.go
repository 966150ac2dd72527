package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/normalizer"
)

// ErrMissingColumn CSV 缺少必需列
var ErrMissingColumn = errors.New("marketdata: missing csv column")

// 表头别名（忽略大小写）
var csvColumns = map[string][]string{
	"timestamp": {"timestamp", "time", "date", "datetime", "open_time"},
	"open":      {"open", "o"},
	"high":      {"high", "h"},
	"low":       {"low", "l"},
	"close":     {"close", "c"},
	"volume":    {"volume", "vol", "v"},
}

// ParseCSV 解析用户上传的 OHLCV CSV：表头 timestamp,open,high,low,close,volume（忽略大小写，volume 可选）。
// 结果按时间升序返回。
func ParseCSV(r io.Reader) ([]domain.HistoricalBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}

	idx := make(map[string]int, len(csvColumns))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for col, aliases := range csvColumns {
			if _, seen := idx[col]; !seen && slices.Contains(aliases, h) {
				idx[col] = i
			}
		}
	}
	for _, col := range []string{"timestamp", "open", "high", "low", "close"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var bars []domain.HistoricalBar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv line %d: %w", line, err)
		}
		if isEmptyRow(row) {
			continue
		}
		b, err := barFromRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("invalid csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	SortBars(bars)
	return bars, nil
}

func barFromRow(row []string, idx map[string]int) (domain.HistoricalBar, error) {
	cell := func(col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	var b domain.HistoricalBar
	ts, _ := cell("timestamp")
	t, err := normalizer.ParseTimestamp(ts)
	if err != nil {
		return b, err
	}
	b.Timestamp = t

	fields := []struct {
		col string
		dst *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
	}
	for _, f := range fields {
		v, _ := cell(f.col)
		n, err := normalizer.ParseNumber(v)
		if err != nil {
			return b, fmt.Errorf("%s: %w", f.col, err)
		}
		*f.dst = n
	}
	if v, ok := cell("volume"); ok && v != "" {
		n, err := normalizer.ParseNumber(v)
		if err != nil {
			return b, fmt.Errorf("volume: %w", err)
		}
		b.Volume = n
	}
	return b, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SortBars 按时间升序（稳定排序）
func SortBars(bars []domain.HistoricalBar) {
	slices.SortStableFunc(bars, func(a, b domain.HistoricalBar) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// MergeBars 按时间戳合并两组 bar，同一时间戳以 override 为准；结果升序
func MergeBars(base, override []domain.HistoricalBar) []domain.HistoricalBar {
	byTS := make(map[int64]domain.HistoricalBar, len(base)+len(override))
	for _, b := range base {
		byTS[b.Timestamp.UnixMilli()] = b
	}
	for _, b := range override {
		byTS[b.Timestamp.UnixMilli()] = b
	}
	out := make([]domain.HistoricalBar, 0, len(byTS))
	for _, b := range byTS {
		out = append(out, b)
	}
	SortBars(out)
	return out
}

// FilterRange 保留 [start, end] 内的 bar；零值表示不限
func FilterRange(bars []domain.HistoricalBar, start, end time.Time) []domain.HistoricalBar {
	out := make([]domain.HistoricalBar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
