// Package normalizer 把不同来源的原始信号记录转换为 domain.TradeSignal。
//
// 每种来源（tradingview/internal/sheet/manual）有自己的候选字段表，
// 解码器按表查找字段：先精确匹配，再忽略大小写匹配。
package normalizer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Source 原始记录来源标签
type Source string

const (
	SourceTradingView Source = "tradingview"
	SourceInternal    Source = "internal"
	SourceSheet       Source = "sheet"
	SourceManual      Source = "manual"
)

var (
	// ErrUnsupportedSource 未知来源标签
	ErrUnsupportedSource = errors.New("normalizer: unsupported source")
	// ErrRejected 记录缺少必需字段或数值无法解析
	ErrRejected = errors.New("normalizer: record rejected")
)

// Record 一条原始记录（JSON 对象或 CSV 行）
type Record map[string]any

var tables = map[Source]fieldTable{
	SourceTradingView: tradingViewFields,
	SourceInternal:    internalFields,
	SourceSheet:       sheetFields,
	SourceManual:      manualFields,
}

// signalNamespace 派生信号 ID 的 UUID 命名空间
var signalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("signaldesk/signal"))

var symbolReplacer = strings.NewReplacer("/", "", "-", "", "_", "", " ", "")

// SignalID 由来源、标的、方向、价位和开仓时间派生稳定 ID。
// 同一条无 ID 记录重复拉取得到相同 ID，入库时覆盖而不是新增。
func SignalID(sig domain.TradeSignal) string {
	key := strings.Join([]string{
		strings.ToLower(sig.Provider),
		symbolReplacer.Replace(strings.ToUpper(strings.TrimSpace(sig.Asset))),
		string(sig.Direction),
		strconv.FormatFloat(sig.Entry, 'f', -1, 64),
		strconv.FormatFloat(sig.StopLoss, 'f', -1, 64),
		strconv.FormatFloat(sig.TakeProfit1, 'f', -1, 64),
		strconv.FormatFloat(sig.TakeProfit2, 'f', -1, 64),
		strconv.FormatFloat(sig.TakeProfit3, 'f', -1, 64),
		strconv.FormatInt(sig.OpenTime.UnixMilli(), 10),
	}, "|")
	return uuid.NewSHA1(signalNamespace, []byte(key)).String()
}

// ParseSource 解析来源标签（忽略大小写）
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tables[src]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, s)
	}
	return src, nil
}

// Sources 所有已知来源
func Sources() []Source {
	return []Source{SourceTradingView, SourceInternal, SourceSheet, SourceManual}
}

// Decode 按来源解码一条记录
func Decode(src Source, rec Record) (domain.TradeSignal, error) {
	table, ok := tables[src]
	if !ok {
		return domain.TradeSignal{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, src)
	}
	d := decoder{src: src, table: table, rec: rec}
	return d.decode()
}

// BatchResult 批量解码结果
type BatchResult struct {
	Signals  []domain.TradeSignal
	Rejected int
	Errors   []error
}

// DecodeBatch 批量解码；被拒绝的记录跳过并计数，不影响其它记录
func DecodeBatch(src Source, recs []Record) (BatchResult, error) {
	if _, ok := tables[src]; !ok {
		return BatchResult{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, src)
	}
	out := BatchResult{Signals: make([]domain.TradeSignal, 0, len(recs))}
	for i, rec := range recs {
		sig, err := Decode(src, rec)
		if err != nil {
			out.Rejected++
			out.Errors = append(out.Errors, fmt.Errorf("record %d: %w", i, err))
			logrus.WithFields(logrus.Fields{"source": src, "index": i}).Debugf("丢弃信号记录: %v", err)
			continue
		}
		out.Signals = append(out.Signals, sig)
	}
	return out, nil
}

type decoder struct {
	src   Source
	table fieldTable
	rec   Record

	lowered map[string]any
}

// lookup 按候选表查找：先精确，再忽略大小写；空值视为缺失
func (d *decoder) lookup(f field) (any, bool) {
	candidates := d.table[f]
	for _, name := range candidates {
		if v, ok := d.rec[name]; ok && !isBlank(v) {
			return v, true
		}
	}
	if d.lowered == nil {
		// 键排序后折叠，仅大小写不同的键按固定顺序取第一个非空值
		keys := make([]string, 0, len(d.rec))
		for k := range d.rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d.lowered = make(map[string]any, len(d.rec))
		for _, k := range keys {
			v := d.rec[k]
			key := strings.ToLower(strings.TrimSpace(k))
			if _, dup := d.lowered[key]; !dup || isBlank(d.lowered[key]) {
				d.lowered[key] = v
			}
		}
	}
	for _, name := range candidates {
		if v, ok := d.lowered[strings.ToLower(name)]; ok && !isBlank(v) {
			return v, true
		}
	}
	return nil, false
}

func (d *decoder) str(f field) string {
	v, ok := d.lookup(f)
	if !ok {
		return ""
	}
	return toString(v)
}

// num 可选数值字段：缺失返回 0；存在但无法解析返回错误
func (d *decoder) num(f field, name string) (float64, error) {
	v, ok := d.lookup(f)
	if !ok {
		return 0, nil
	}
	n, err := ParseNumber(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrRejected, name, err)
	}
	return n, nil
}

func (d *decoder) decode() (domain.TradeSignal, error) {
	sig := domain.TradeSignal{
		ID:       d.str(fieldID),
		Asset:    strings.ToUpper(d.str(fieldAsset)),
		Provider: d.str(fieldProvider),
		Notes:    d.str(fieldNotes),
	}
	if sig.Asset == "" {
		return sig, fmt.Errorf("%w: missing asset", ErrRejected)
	}

	if _, ok := d.lookup(fieldEntry); !ok {
		return sig, fmt.Errorf("%w: missing entry", ErrRejected)
	}
	var err error
	if sig.Entry, err = d.num(fieldEntry, "entry"); err != nil {
		return sig, err
	}
	if sig.Entry <= 0 {
		return sig, fmt.Errorf("%w: entry must be positive", ErrRejected)
	}
	if sig.StopLoss, err = d.num(fieldStopLoss, "stop loss"); err != nil {
		return sig, err
	}
	if err := d.takeProfits(&sig); err != nil {
		return sig, err
	}

	sig.Direction = d.direction(sig)

	if v, ok := d.lookup(fieldTimestamp); ok {
		t, err := ParseTimestamp(v)
		if err != nil {
			return sig, fmt.Errorf("%w: timestamp: %v", ErrRejected, err)
		}
		sig.OpenTime = t
	}

	sig.Status = domain.SignalStatusActive
	if st, ok := domain.ParseSignalStatus(d.str(fieldStatus)); ok {
		sig.Status = st
	}
	sig.MarketType = domain.MarketTypeCrypto
	if mt, ok := domain.ParseMarketType(d.str(fieldMarketType)); ok {
		sig.MarketType = mt
	}
	sig.Timeframe = strings.ToLower(d.str(fieldTimeframe))
	if sig.Provider == "" {
		sig.Provider = string(d.src)
	}
	if sig.ID == "" {
		sig.ID = SignalID(sig)
	}
	return sig, nil
}

// takeProfits 单独字段优先；都没有时读取数组字段
func (d *decoder) takeProfits(sig *domain.TradeSignal) error {
	found := false
	for i, f := range []field{fieldTP1, fieldTP2, fieldTP3} {
		p, err := d.num(f, fmt.Sprintf("take profit %d", i+1))
		if err != nil {
			return err
		}
		if p > 0 {
			sig.SetTakeProfit(i+1, p)
			found = true
		}
	}
	if found {
		return nil
	}
	v, ok := d.lookup(fieldTPList)
	if !ok {
		return nil
	}
	levels, err := toNumberList(v)
	if err != nil {
		return fmt.Errorf("%w: take profits: %v", ErrRejected, err)
	}
	for i, p := range levels {
		if i >= domain.MaxTakeProfits {
			break
		}
		sig.SetTakeProfit(i+1, p)
	}
	return nil
}

// direction 缺失或无法识别时按止损/止盈相对入场价推断，仍无法判断则默认做多
func (d *decoder) direction(sig domain.TradeSignal) domain.Direction {
	if dir, ok := domain.ParseDirection(d.str(fieldDirection)); ok {
		return dir
	}
	switch {
	case sig.StopLoss > 0 && sig.StopLoss > sig.Entry:
		return domain.DirectionShort
	case sig.StopLoss > 0 && sig.StopLoss < sig.Entry:
		return domain.DirectionLong
	case sig.TakeProfit1 > 0 && sig.TakeProfit1 < sig.Entry:
		return domain.DirectionShort
	}
	return domain.DirectionLong
}
