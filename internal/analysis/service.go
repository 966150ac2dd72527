// Package analysis 把各组件串起来：信号入库、K 线获取、回测运行、结果导出与解读。
// 所有依赖通过 Options 注入，状态只保存在 store 里。
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/feed"
	"github.com/betbot/signaldesk/internal/insight"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/notify"
	"github.com/betbot/signaldesk/internal/store"
	"github.com/betbot/signaldesk/pkg/config"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "analysis")

var (
	// ErrNoAsset 未选择标的也未指定信号
	ErrNoAsset = errors.New("no asset selected")
	// ErrNoSignals 选中的范围内没有信号
	ErrNoSignals = errors.New("no signals to analyze")
	// ErrNoHistoricalData 标的没有任何可用的历史 K 线
	ErrNoHistoricalData = errors.New("no historical data for asset")
	// ErrSignalNotFound 信号不存在
	ErrSignalNotFound = errors.New("signal not found")
	// ErrInvalidPayload 上传内容无法解析（JSON / CSV）
	ErrInvalidPayload = errors.New("invalid payload")
)

// Options 服务依赖
type Options struct {
	Store   *store.Store
	Notices *notify.Center
	Insight insight.Generator
	// Bars 远程 K 线来源，可为空（只使用库内数据）
	Bars    marketdata.Source
	Fetcher *feed.Fetcher
	Feeds   []config.FeedConfig

	ExpiryWindow    time.Duration
	DefaultInterval string
	Now             func() time.Time
}

type Service struct {
	store    *store.Store
	notices  *notify.Center
	insight  insight.Generator
	fallback insight.Generator
	bars     marketdata.Source
	fetcher  *feed.Fetcher
	feeds    []config.FeedConfig

	expiryWindow    time.Duration
	defaultInterval string
	now             func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("analysis: store is required")
	}
	if opts.Notices == nil {
		opts.Notices = notify.NewCenter(100)
	}
	if opts.Insight == nil {
		opts.Insight = insight.NewRuleGenerator()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = feed.NewFetcher(30 * time.Second)
	}
	if opts.DefaultInterval == "" {
		opts.DefaultInterval = "1h"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:           opts.Store,
		notices:         opts.Notices,
		insight:         opts.Insight,
		fallback:        insight.NewRuleGenerator(),
		bars:            opts.Bars,
		fetcher:         opts.Fetcher,
		feeds:           opts.Feeds,
		expiryWindow:    opts.ExpiryWindow,
		defaultInterval: opts.DefaultInterval,
		now:             opts.Now,
	}, nil
}

// Notices 状态消息中心
func (s *Service) Notices() *notify.Center { return s.notices }

// Signals 列出库内信号
func (s *Service) Signals(ctx context.Context, f store.SignalFilter) ([]domain.TradeSignal, error) {
	if f.Asset != "" {
		f.Asset = marketdata.NormalizeSymbol(f.Asset)
	}
	return s.store.ListSignals(ctx, f)
}

// Status 概览：最近消息、已有 K 线序列、最近运行
type Status struct {
	Notices []notify.Notice     `json:"notices"`
	Assets  []string            `json:"assets"`
	Series  []store.BarSeries   `json:"series"`
	Runs    []store.Run         `json:"runs"`
	Feeds   []config.FeedConfig `json:"feeds"`
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{Notices: s.notices.Recent(20), Feeds: s.feeds}
	var err error
	if st.Assets, err = s.store.SignalAssets(ctx); err != nil {
		return st, err
	}
	if st.Series, err = s.store.ListBarSeries(ctx); err != nil {
		return st, err
	}
	if st.Runs, err = s.store.ListRuns(ctx, 10); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Service) interval(v string) string {
	if v == "" {
		return s.defaultInterval
	}
	return v
}
