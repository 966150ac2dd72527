package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/normalizer"
	"github.com/betbot/signaldesk/pkg/httpclient"
)

// RESTSource 通用 OHLCV REST 接口：GET {base}/bars?symbol=&interval=&start=&end=（毫秒）。
// 响应可以是对象数组、数组的数组（[ts,o,h,l,c,v]），或 {bars:[...]} 包装。
type RESTSource struct {
	client *httpclient.Client
	path   string
}

// NewRESTSource 创建 REST 来源
func NewRESTSource(baseURL string, timeout time.Duration) *RESTSource {
	return &RESTSource{
		client: httpclient.NewClient(baseURL, httpclient.Options{Timeout: timeout}),
		path:   "/bars",
	}
}

func (s *RESTSource) Bars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.HistoricalBar, error) {
	params := map[string]any{"symbol": symbol, "interval": interval}
	if !start.IsZero() {
		params["start"] = start.UnixMilli()
	}
	if !end.IsZero() {
		params["end"] = end.UnixMilli()
	}
	body, err := s.client.Get(ctx, s.path, params)
	if err != nil {
		return nil, err
	}
	bars, err := DecodeBarsJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode bars for %s: %w", symbol, err)
	}
	return FilterRange(bars, start, end), nil
}

// 对象形式 bar 的字段别名
var barKeys = map[string][]string{
	"timestamp": {"timestamp", "time", "t", "date", "openTime", "open_time"},
	"open":      {"open", "o"},
	"high":      {"high", "h"},
	"low":       {"low", "l"},
	"close":     {"close", "c"},
	"volume":    {"volume", "v", "vol"},
}

// DecodeBarsJSON 解析 bar 数组（三种形状），结果按时间升序
func DecodeBarsJSON(body []byte) ([]domain.HistoricalBar, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, k := range []string{"bars", "data", "candles", "klines"} {
			if arr, ok := v[k].([]any); ok {
				items = arr
				break
			}
		}
		if items == nil {
			return nil, fmt.Errorf("invalid json: no bar array in envelope")
		}
	default:
		return nil, fmt.Errorf("invalid json: expected array or object, got %T", raw)
	}

	bars := make([]domain.HistoricalBar, 0, len(items))
	for i, item := range items {
		var (
			b   domain.HistoricalBar
			err error
		)
		switch v := item.(type) {
		case []any:
			b, err = barFromArray(v)
		case map[string]any:
			b, err = barFromObject(v)
		default:
			err = fmt.Errorf("unexpected %T", item)
		}
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		bars = append(bars, b)
	}
	SortBars(bars)
	return bars, nil
}

func barFromArray(v []any) (domain.HistoricalBar, error) {
	var b domain.HistoricalBar
	if len(v) < 5 {
		return b, fmt.Errorf("expected at least 5 elements, got %d", len(v))
	}
	t, err := normalizer.ParseTimestamp(v[0])
	if err != nil {
		return b, err
	}
	b.Timestamp = t
	dst := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
	for i, p := range dst {
		if i+1 >= len(v) {
			break
		}
		if *p, err = normalizer.ParseNumber(v[i+1]); err != nil {
			return b, err
		}
	}
	return b, nil
}

func barFromObject(m map[string]any) (domain.HistoricalBar, error) {
	var b domain.HistoricalBar
	get := func(col string) (any, bool) {
		for _, k := range barKeys[col] {
			if v, ok := m[k]; ok && v != nil {
				return v, true
			}
		}
		for k, v := range m {
			for _, alias := range barKeys[col] {
				if strings.EqualFold(k, alias) && v != nil {
					return v, true
				}
			}
		}
		return nil, false
	}

	ts, ok := get("timestamp")
	if !ok {
		return b, fmt.Errorf("missing timestamp")
	}
	t, err := normalizer.ParseTimestamp(ts)
	if err != nil {
		return b, err
	}
	b.Timestamp = t

	for col, dst := range map[string]*float64{"open": &b.Open, "high": &b.High, "low": &b.Low, "close": &b.Close} {
		v, ok := get(col)
		if !ok {
			return b, fmt.Errorf("missing %s", col)
		}
		if *dst, err = normalizer.ParseNumber(v); err != nil {
			return b, fmt.Errorf("%s: %w", col, err)
		}
	}
	if v, ok := get("volume"); ok {
		if b.Volume, err = normalizer.ParseNumber(v); err != nil {
			return b, fmt.Errorf("volume: %w", err)
		}
	}
	return b, nil
}
