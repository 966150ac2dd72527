// Package feed 拉取外部信号源（REST JSON 接口、表格 CSV 导出链接）并规范化。
package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/metrics"
	"github.com/betbot/signaldesk/internal/normalizer"
	"github.com/betbot/signaldesk/pkg/config"
	"github.com/betbot/signaldesk/pkg/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("component", "feed")

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Result 单个信号源的拉取结果
type Result struct {
	Feed     string               `json:"feed"`
	Source   normalizer.Source    `json:"source"`
	Signals  []domain.TradeSignal `json:"-"`
	Accepted int                  `json:"accepted"`
	Rejected int                  `json:"rejected"`
	Err      error                `json:"-"`
	Took     time.Duration        `json:"took"`
}

// ErrorMessage 便于 JSON / 状态栏输出
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Fetcher 通过 HTTP 拉取信号源
type Fetcher struct {
	client *httpclient.Client
}

// NewFetcher 创建 Fetcher；不重试，失败直接作为状态消息上报
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: httpclient.NewClient("", httpclient.Options{Timeout: timeout})}
}

// Fetch 拉取并解码单个信号源
func (f *Fetcher) Fetch(ctx context.Context, fc config.FeedConfig) Result {
	started := time.Now()
	res := Result{Feed: fc.Name}

	src, err := normalizer.ParseSource(fc.Source)
	if err != nil {
		res.Err = err
		return res
	}
	res.Source = src

	body, err := f.client.Get(ctx, fc.URL, nil)
	if err != nil {
		res.Err = fmt.Errorf("fetch %s: %w", fc.Name, err)
		return res
	}

	var recs []normalizer.Record
	switch fc.Format {
	case FormatCSV:
		recs, err = normalizer.RecordsFromCSV(bytes.NewReader(body))
	default:
		recs, err = normalizer.ParseEnvelope(body)
	}
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", fc.Name, err)
		return res
	}

	batch, err := normalizer.DecodeBatch(src, recs)
	if err != nil {
		res.Err = err
		return res
	}
	res.Signals = batch.Signals
	res.Accepted = len(batch.Signals)
	res.Rejected = batch.Rejected
	res.Took = time.Since(started)
	return res
}

// FetchAll 并行拉取全部信号源（互不等待、互不中断）。
// 合并顺序固定为配置顺序，与完成先后无关；失败的源只记录在对应 Result.Err 中。
func (f *Fetcher) FetchAll(ctx context.Context, feeds []config.FeedConfig) ([]domain.TradeSignal, []Result) {
	results := make([]Result, len(feeds))
	var g errgroup.Group
	for i, fc := range feeds {
		i, fc := i, fc
		g.Go(func() error {
			results[i] = f.Fetch(ctx, fc)
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.TradeSignal
	for _, r := range results {
		if r.Err != nil {
			metrics.FeedErrors.WithLabelValues(r.Feed).Inc()
			log.WithField("feed", r.Feed).Warnf("信号源拉取失败: %v", r.Err)
			continue
		}
		metrics.SignalsIngested.WithLabelValues(string(r.Source)).Add(float64(r.Accepted))
		metrics.SignalsRejected.WithLabelValues(string(r.Source)).Add(float64(r.Rejected))
		log.WithFields(logrus.Fields{"feed": r.Feed, "accepted": r.Accepted, "rejected": r.Rejected}).Info("信号源拉取完成")
		merged = append(merged, r.Signals...)
	}
	return merged, results
}
