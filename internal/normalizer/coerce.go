package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// 常见时间格式（表格导出、TradingView 占位符、内部 API）
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// 超过该值按毫秒解释
const unixMillisThreshold = 1e12

// isBlank nil、空串、"null"/"n/a"/"-" 都视为缺失
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "null", "none", "n/a", "na", "-":
			return true
		}
	}
	return false
}

// toString 把任意 JSON 标量转成字符串
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// ParseNumber 数值字段强制转换：接受数字或带货币符号/千分位/单位后缀的字符串
func ParseNumber(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return parseDecimal(x.String())
	case string:
		return parseDecimal(cleanNumeric(x))
	}
	return 0, fmt.Errorf("unsupported numeric value %T", v)
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	f, _ := d.Float64()
	return f, nil
}

// cleanNumeric "$68,500.00 USDT" -> "68500.00"
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	start := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsDigit(r) || r == '-' || r == '+' || r == '.'
	})
	if start < 0 {
		return s
	}
	end := strings.LastIndexFunc(s, func(r rune) bool {
		return unicode.IsDigit(r) || r == '.'
	})
	if end < start {
		return s
	}
	s = s[start : end+1]
	return strings.Map(func(r rune) rune {
		if r == ',' || r == '_' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseTimestamp 时间字段：数字按 unix 秒/毫秒，字符串按 timeLayouts 逐个尝试，结果统一为 UTC
func ParseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case float64:
		return fromUnix(x), nil
	case int64:
		return fromUnix(float64(x)), nil
	case int:
		return fromUnix(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", x.String())
		}
		return fromUnix(f), nil
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(f), nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp value %T", v)
}

func fromUnix(f float64) time.Time {
	if f >= unixMillisThreshold {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}

// toNumberList take_profits 这类数组字段
func toNumberList(v any) ([]float64, error) {
	switch x := v.(type) {
	case []any:
		out := make([]float64, 0, len(x))
		for _, item := range x {
			if isBlank(item) {
				continue
			}
			f, err := ParseNumber(item)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	case []float64:
		return x, nil
	case string:
		var out []float64
		for _, part := range strings.FieldsFunc(x, func(r rune) bool { return r == '/' || r == ';' || r == '|' }) {
			f, err := ParseNumber(part)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported list value %T", v)
}
