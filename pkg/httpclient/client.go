package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

type Client struct {
	client *resty.Client
}

type Options struct {
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// NewClient 创建带重试的 HTTP 客户端；host 为空时 endpoint 需传完整 URL。
// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
func NewClient(host string, opts Options) *Client {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "signaldesk/1.0"
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", opts.UserAgent).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 遇到 429 限流，使用 Retry-After 头
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if ra := resp.Header().Get("Retry-After"); ra != "" {
					if d, err := time.ParseDuration(ra + "s"); err == nil {
						return d, nil
					}
				}
				return 5 * time.Second, nil
			}
			return 0, nil
		})
	if host != "" {
		client.SetBaseURL(host)
	}
	return &Client{client: client}
}

type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "*/*")
	return r
}

// DoRequest 发送请求并返回原始 body；非 2xx 返回包含状态码与响应体的错误
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions) ([]byte, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}

	var (
		resp *resty.Response
		err  error
	)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		resp, err = rc.Get(endpoint)
	case http.MethodPost:
		resp, err = rc.Post(endpoint)
	case http.MethodPut:
		resp, err = rc.Put(endpoint)
	case http.MethodDelete:
		resp, err = rc.Delete(endpoint)
	default:
		return nil, errors.Errorf("unsupported method: %s", method)
	}
	if err := ParseHTTPError(resp, err); err != nil {
		return nil, errors.Wrapf(err, "%s %s", strings.ToUpper(method), endpoint)
	}
	return resp.Body(), nil
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any) ([]byte, error) {
	return c.DoRequest(ctx, http.MethodGet, endpoint, &RequestOptions{Params: params})
}

// PostJSON 发送 JSON POST 请求，并把响应解码到 out（out 可为 nil）
func (c *Client) PostJSON(ctx context.Context, endpoint string, headers map[string]string, body, out any) error {
	b, err := c.DoRequest(ctx, http.MethodPost, endpoint, &RequestOptions{Headers: headers, Data: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// ParseHTTPError 把传输错误和非 2xx 响应统一为 error
func ParseHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("empty response")
	}
	if resp.IsSuccess() {
		return nil
	}
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > 512 {
		body = body[:512]
	}
	return &HTTPError{StatusCode: resp.StatusCode(), Body: body}
}
