package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/signaldesk/pkg/httpclient"
	"github.com/pkg/errors"
)

const systemPrompt = "You are a trading desk analyst. Write a concise, neutral two to four sentence review of the trade signal " +
	"described by the user. Mention risk/reward and, when a backtest outcome is given, what it implies. No advice, no emojis."

// OpenAIOptions OpenAI 兼容接口参数
type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator 调用 /v1/chat/completions 生成解读
type OpenAIGenerator struct {
	client *httpclient.Client
	apiKey string
	model  string
	now    func() time.Time
}

func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		client: httpclient.NewClient(opts.BaseURL, httpclient.Options{Timeout: opts.Timeout, RetryCount: 1}),
		apiKey: opts.APIKey,
		model:  opts.Model,
		now:    time.Now,
	}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Insight, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return Insight{}, err
	}
	body := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	}
	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}

	var resp chatResponse
	if err := g.client.PostJSON(ctx, "/v1/chat/completions", headers, body, &resp); err != nil {
		return Insight{}, errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Insight{}, errors.New("openai chat completion: empty response")
	}
	return Insight{
		SignalID:    req.Signal.ID,
		Provider:    g.Name(),
		Text:        strings.TrimSpace(resp.Choices[0].Message.Content),
		GeneratedAt: g.now(),
	}, nil
}

// userPrompt 把规则模板的结构化事实交给模型
func userPrompt(req Request) (string, error) {
	var sb strings.Builder
	if err := ruleTmpl.Execute(&sb, buildFacts(req)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Signal %s, market %s.\n%s", req.Signal.ID, req.Signal.MarketType, strings.TrimSpace(sb.String())), nil
}
