package normalizer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// 用于 Detect 的签名字段（大小写敏感）
var (
	tradingViewSignature = []string{"Entry Price", "Stop Loss", "Take Profit 1", "Asset", "Direction", "Symbol", "Ticker", "ticker", "action"}
	manualSignature      = []string{"takeProfit1", "stopLoss", "marketType"}
	internalSignature    = []string{"entry_price", "stop_loss", "take_profit_1", "entry", "asset", "symbol"}
)

// Detect 根据签名字段猜测记录来源。
// 只在来源未知时使用（例如通用 webhook）；已知来源应直接调用 Decode。
func Detect(rec Record) Source {
	if hasAny(rec, manualSignature) {
		return SourceManual
	}
	if hasAny(rec, tradingViewSignature) {
		return SourceTradingView
	}
	if hasAny(rec, internalSignature) {
		return SourceInternal
	}
	return SourceInternal
}

func hasAny(rec Record, keys []string) bool {
	for _, k := range keys {
		if _, ok := rec[k]; ok {
			return true
		}
	}
	return false
}

// envelope 的数组字段名
var envelopeKeys = []string{"signals", "data", "items", "results"}

// ParseEnvelope 解析 JSON 载荷：数组、{signals:[...]} 包装，或单个对象
func ParseEnvelope(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	switch v := raw.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, k := range envelopeKeys {
			if arr, ok := v[k].([]any); ok {
				return toRecords(arr)
			}
		}
		return []Record{Record(v)}, nil
	}
	return nil, fmt.Errorf("invalid json: expected array or object, got %T", raw)
}

func toRecords(arr []any) ([]Record, error) {
	out := make([]Record, 0, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid json: element %d is %T, not an object", i, item)
		}
		out = append(out, Record(m))
	}
	return out, nil
}

// ParseManual 解析手工粘贴的 JSON（规范 TradeSignal 结构）
func ParseManual(body []byte) (BatchResult, error) {
	recs, err := ParseEnvelope(body)
	if err != nil {
		return BatchResult{}, err
	}
	return DecodeBatch(SourceManual, recs)
}

// RecordsFromCSV 把带表头的 CSV（表格导出）转换为记录；空行跳过
func RecordsFromCSV(r io.Reader) ([]Record, error) {
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
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv line %d: %w", line, err)
		}
		rec := make(Record, len(header))
		empty := true
		for i, name := range header {
			if i >= len(row) || name == "" {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell != "" {
				empty = false
			}
			rec[name] = cell
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out, nil
}
