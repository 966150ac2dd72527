package normalizer

// field 规范字段
type field int

const (
	fieldID field = iota
	fieldAsset
	fieldDirection
	fieldEntry
	fieldStopLoss
	fieldTP1
	fieldTP2
	fieldTP3
	fieldTPList
	fieldTimestamp
	fieldStatus
	fieldProvider
	fieldMarketType
	fieldTimeframe
	fieldNotes
)

// fieldTable 每个规范字段对应的候选源字段名（按优先级排序）
type fieldTable map[field][]string

// TradingView 风格：首字母大写、带空格
var tradingViewFields = fieldTable{
	fieldID:         {"ID", "Signal ID", "id"},
	fieldAsset:      {"Asset", "Symbol", "Ticker", "Pair", "ticker", "symbol"},
	fieldDirection:  {"Direction", "Signal", "Side", "Action", "Type", "action", "side"},
	fieldEntry:      {"Entry Price", "Entry", "Price", "price", "close"},
	fieldStopLoss:   {"Stop Loss", "SL", "Stop", "StopLoss"},
	fieldTP1:        {"Take Profit 1", "TP1", "Take Profit", "TP"},
	fieldTP2:        {"Take Profit 2", "TP2"},
	fieldTP3:        {"Take Profit 3", "TP3"},
	fieldTimestamp:  {"Timestamp", "Time", "Date", "Entry Time", "time", "timenow"},
	fieldStatus:     {"Status"},
	fieldProvider:   {"Provider", "Source", "Strategy"},
	fieldMarketType: {"Market Type", "Market", "Category"},
	fieldTimeframe:  {"Timeframe", "Interval", "interval"},
	fieldNotes:      {"Notes", "Comment", "Message"},
}

// 内部 REST 接口：小写 / snake_case / camelCase 混用
var internalFields = fieldTable{
	fieldID:         {"id", "signal_id", "signalId"},
	fieldAsset:      {"asset", "symbol", "pair", "instrument"},
	fieldDirection:  {"direction", "side", "type", "signal_type"},
	fieldEntry:      {"entry", "entry_price", "entryPrice", "price"},
	fieldStopLoss:   {"stop_loss", "stopLoss", "sl"},
	fieldTP1:        {"take_profit_1", "takeProfit1", "tp1", "take_profit", "takeProfit", "tp"},
	fieldTP2:        {"take_profit_2", "takeProfit2", "tp2"},
	fieldTP3:        {"take_profit_3", "takeProfit3", "tp3"},
	fieldTPList:     {"take_profits", "takeProfits", "targets", "tps"},
	fieldTimestamp:  {"timestamp", "created_at", "createdAt", "open_time", "openTime", "time", "date"},
	fieldStatus:     {"status", "state"},
	fieldProvider:   {"provider", "source"},
	fieldMarketType: {"market_type", "marketType", "market"},
	fieldTimeframe:  {"timeframe", "interval"},
	fieldNotes:      {"notes", "comment", "description"},
}

// 表格导出（Google Sheets CSV）的表头
var sheetFields = fieldTable{
	fieldID:         {"ID", "Signal ID"},
	fieldAsset:      {"Pair", "Asset", "Symbol", "Coin"},
	fieldDirection:  {"Type", "Direction", "Signal", "Position"},
	fieldEntry:      {"Entry", "Entry Price", "Entry Zone"},
	fieldStopLoss:   {"SL", "Stop Loss", "Stoploss"},
	fieldTP1:        {"TP1", "TP 1", "Take Profit 1", "Target 1"},
	fieldTP2:        {"TP2", "TP 2", "Take Profit 2", "Target 2"},
	fieldTP3:        {"TP3", "TP 3", "Take Profit 3", "Target 3"},
	fieldTimestamp:  {"Date", "Timestamp", "Time", "Opened"},
	fieldStatus:     {"Status", "Result"},
	fieldProvider:   {"Provider", "Channel", "Group"},
	fieldMarketType: {"Market", "Market Type"},
	fieldTimeframe:  {"Timeframe", "TF"},
	fieldNotes:      {"Notes", "Comment"},
}

// 手工粘贴的 JSON：规范 TradeSignal 字段名
var manualFields = fieldTable{
	fieldID:         {"id"},
	fieldAsset:      {"asset"},
	fieldDirection:  {"direction"},
	fieldEntry:      {"entry"},
	fieldStopLoss:   {"stopLoss"},
	fieldTP1:        {"takeProfit1"},
	fieldTP2:        {"takeProfit2"},
	fieldTP3:        {"takeProfit3"},
	fieldTPList:     {"takeProfits"},
	fieldTimestamp:  {"timestamp"},
	fieldStatus:     {"status"},
	fieldProvider:   {"provider"},
	fieldMarketType: {"marketType"},
	fieldTimeframe:  {"timeframe"},
	fieldNotes:      {"notes"},
}
