package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/normalizer"
	"github.com/gorilla/websocket"
)

const DefaultStreamURL = "wss://stream.binance.com:9443"

// ClosedBarHandler 收到已收盘 K 线时回调（symbol 为大写，如 BTCUSDT）
type ClosedBarHandler func(symbol, interval string, bar domain.HistoricalBar)

// StreamOptions 实时 kline 订阅参数
type StreamOptions struct {
	BaseURL  string
	Symbols  []string
	Interval string
	ProxyURL string
}

// KlineStream 订阅 Binance 现货 kline 组合流，缓存每个交易对的最新 K 线，
// 收盘 K 线交给 ClosedBarHandler（通常写入 bar 库）。断线自动重连。
type KlineStream struct {
	opts     StreamOptions
	onClosed ClosedBarHandler

	mu     sync.RWMutex
	latest map[string]domain.HistoricalBar

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	reconnectDelay time.Duration
	// dialFn 默认 k.dial，测试中可替换
	dialFn func(wsURL string) (*websocket.Conn, error)
}

func NewKlineStream(opts StreamOptions, onClosed ClosedBarHandler) *KlineStream {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultStreamURL
	}
	if opts.Interval == "" {
		opts.Interval = "1m"
	}
	syms := make([]string, 0, len(opts.Symbols))
	for _, s := range opts.Symbols {
		if s = strings.ToLower(NormalizeSymbol(s)); s != "" {
			syms = append(syms, s)
		}
	}
	opts.Symbols = syms
	opts.ProxyURL = strings.TrimSpace(opts.ProxyURL)
	k := &KlineStream{
		opts:           opts,
		onClosed:       onClosed,
		latest:         make(map[string]domain.HistoricalBar),
		reconnectDelay: 2 * time.Second,
	}
	k.dialFn = k.dial
	return k
}

// Start 在后台运行，直到 ctx 取消或调用 Stop
func (k *KlineStream) Start(ctx context.Context) error {
	if len(k.opts.Symbols) == 0 {
		return fmt.Errorf("kline stream: no symbols")
	}
	k.ctx, k.cancel = context.WithCancel(ctx)
	k.done = make(chan struct{})
	go k.run()
	return nil
}

// Stop 停止订阅并等待后台 goroutine 退出
func (k *KlineStream) Stop() {
	if k.cancel == nil {
		return
	}
	k.cancel()
	k.connMu.Lock()
	if k.conn != nil {
		_ = k.conn.Close()
		k.conn = nil
	}
	k.connMu.Unlock()
	<-k.done
}

// Latest 返回某交易对最新（可能未收盘）的 K 线
func (k *KlineStream) Latest(symbol string) (domain.HistoricalBar, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	b, ok := k.latest[NormalizeSymbol(symbol)]
	return b, ok
}

func (k *KlineStream) streamURL() string {
	streams := make([]string, len(k.opts.Symbols))
	for i, s := range k.opts.Symbols {
		streams[i] = fmt.Sprintf("%s@kline_%s", s, k.opts.Interval)
	}
	return strings.TrimSuffix(k.opts.BaseURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

func (k *KlineStream) run() {
	defer close(k.done)
	wsURL := k.streamURL()

	for {
		select {
		case <-k.ctx.Done():
			return
		default:
		}

		conn, err := k.dialFn(wsURL)
		if err != nil {
			log.Warnf("连接 kline 流失败: %v", err)
			select {
			case <-time.After(k.reconnectDelay):
				continue
			case <-k.ctx.Done():
				return
			}
		}

		k.connMu.Lock()
		// Stop 可能在拨号期间执行，此时它看不到这个连接
		if k.ctx.Err() != nil {
			_ = conn.Close()
			k.connMu.Unlock()
			return
		}
		k.conn = conn
		k.connMu.Unlock()

		log.Infof("kline 流已连接: symbols=%v interval=%s", k.opts.Symbols, k.opts.Interval)

		if err := k.readLoop(conn); err != nil && k.ctx.Err() == nil {
			log.Warnf("kline 流 readLoop 退出: %v", err)
		}

		k.connMu.Lock()
		if k.conn == conn {
			k.conn = nil
		}
		_ = conn.Close()
		k.connMu.Unlock()

		select {
		case <-time.After(k.reconnectDelay / 2):
		case <-k.ctx.Done():
			return
		}
	}
}

func (k *KlineStream) dial(wsURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	if k.opts.ProxyURL != "" {
		if p, err := url.Parse(k.opts.ProxyURL); err == nil {
			dialer.Proxy = http.ProxyURL(p)
		}
	}
	conn, _, err := dialer.DialContext(k.ctx, wsURL, nil)
	return conn, err
}

func (k *KlineStream) readLoop(conn *websocket.Conn) error {
	type payload struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}

	for {
		select {
		case <-k.ctx.Done():
			return k.ctx.Err()
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var p payload
		if err := json.Unmarshal(msg, &p); err != nil || len(p.Data) == 0 {
			continue
		}
		k.handleKlineEvent(p.Data)
	}
}

// kline 事件：https://developers.binance.com/docs/binance-spot-api-docs/web-socket-streams
type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	K         struct {
		StartTime int64  `json:"t"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

func (k *KlineStream) handleKlineEvent(data json.RawMessage) {
	var ev klineEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.EventType != "kline" {
		return
	}

	bar := domain.HistoricalBar{Timestamp: time.UnixMilli(ev.K.StartTime).UTC()}
	for _, f := range []struct {
		raw string
		dst *float64
	}{
		{ev.K.Open, &bar.Open}, {ev.K.High, &bar.High}, {ev.K.Low, &bar.Low}, {ev.K.Close, &bar.Close}, {ev.K.Volume, &bar.Volume},
	} {
		n, err := normalizer.ParseNumber(f.raw)
		if err != nil {
			return
		}
		*f.dst = n
	}

	symbol := NormalizeSymbol(ev.Symbol)
	k.mu.Lock()
	k.latest[symbol] = bar
	k.mu.Unlock()

	if ev.K.IsClosed && k.onClosed != nil {
		k.onClosed(symbol, strings.ToLower(ev.K.Interval), bar)
	}
}
