// Package insight 为信号生成文字解读。
// 两种实现：规则模板（确定性、离线可用）和 OpenAI 兼容的对话接口，按配置选择。
package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/pkg/config"
)

// Request 生成解读所需的输入；Result 为空表示尚未回测
type Request struct {
	Signal domain.TradeSignal
	Result *domain.AnalysisResult
}

// Insight 一段解读文字
type Insight struct {
	SignalID    string    `json:"signalId"`
	Provider    string    `json:"provider"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generator 解读生成器
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (Insight, error)
}

// New 按配置创建生成器，并套上缓存
func New(cfg config.InsightConfig) (Generator, error) {
	var g Generator
	switch cfg.Provider {
	case "", "rule":
		g = NewRuleGenerator()
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("insight: openai provider requires an api key")
		}
		g = NewOpenAIGenerator(OpenAIOptions{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("insight: unknown provider %q", cfg.Provider)
	}
	return NewCached(g, cfg.CacheTTL), nil
}
