package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Listen string
	DBPath string
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// FeedConfig 信号源配置（REST 接口或表格导出 URL）
type FeedConfig struct {
	Name   string `yaml:"name" json:"name"`
	URL    string `yaml:"url" json:"url"`
	Format string `yaml:"format" json:"format"` // json | csv
	Source string `yaml:"source" json:"source"` // tradingview | internal | sheet | manual
}

// SyncConfig 信号源自动同步
type SyncConfig struct {
	Interval time.Duration // 0 表示不定时同步，只响应手动触发
	MinGap   time.Duration // 两次同步的最小间隔
}

// BarsConfig 历史 K 线数据源配置
type BarsConfig struct {
	Provider string // rest | binance | none
	BaseURL  string
	Interval string
	CacheDir string // Badger 持久化缓存目录（为空则只用内存缓存）
	CacheTTL time.Duration
}

// StreamConfig 实时 K 线订阅配置
type StreamConfig struct {
	Enabled  bool
	Symbols  []string
	Interval string
	ProxyURL string
}

// InsightConfig 分析文案生成器配置
type InsightConfig struct {
	Provider string // rule | openai
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// AnalysisConfig 回测参数
type AnalysisConfig struct {
	ExpiryWindow    time.Duration // 0 表示不判定过期
	DefaultInterval string
}

// MetricsConfig 指标/调试服务配置
type MetricsConfig struct {
	Listen string // 为空则不单独启动 debug server（/metrics 仍挂在主路由上）
}

// Config 应用配置
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Feeds    []FeedConfig
	Sync     SyncConfig
	Bars     BarsConfig
	Stream   StreamConfig
	Insight  InsightConfig
	Analysis AnalysisConfig
	Metrics  MetricsConfig
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	Server struct {
		Listen string `yaml:"listen" json:"listen"`
		DBPath string `yaml:"db_path" json:"db_path"`
	} `yaml:"server" json:"server"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   *bool  `yaml:"compress" json:"compress"`
	} `yaml:"log" json:"log"`
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`
	Sync  struct {
		Interval Duration `yaml:"interval" json:"interval"`
		MinGap   Duration `yaml:"min_gap" json:"min_gap"`
	} `yaml:"sync" json:"sync"`
	Bars struct {
		Provider string   `yaml:"provider" json:"provider"`
		BaseURL  string   `yaml:"base_url" json:"base_url"`
		Interval string   `yaml:"interval" json:"interval"`
		CacheDir string   `yaml:"cache_dir" json:"cache_dir"`
		CacheTTL Duration `yaml:"cache_ttl" json:"cache_ttl"`
	} `yaml:"bars" json:"bars"`
	Stream struct {
		Enabled  bool     `yaml:"enabled" json:"enabled"`
		Symbols  []string `yaml:"symbols" json:"symbols"`
		Interval string   `yaml:"interval" json:"interval"`
		ProxyURL string   `yaml:"proxy_url" json:"proxy_url"`
	} `yaml:"stream" json:"stream"`
	Insight struct {
		Provider string   `yaml:"provider" json:"provider"`
		APIKey   string   `yaml:"api_key" json:"api_key"`
		Model    string   `yaml:"model" json:"model"`
		BaseURL  string   `yaml:"base_url" json:"base_url"`
		Timeout  Duration `yaml:"timeout" json:"timeout"`
		CacheTTL Duration `yaml:"cache_ttl" json:"cache_ttl"`
	} `yaml:"insight" json:"insight"`
	Analysis struct {
		ExpiryWindow    Duration `yaml:"expiry_window" json:"expiry_window"`
		DefaultInterval string   `yaml:"default_interval" json:"default_interval"`
	} `yaml:"analysis" json:"analysis"`
	Metrics struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"metrics" json:"metrics"`
}

// LoadFromFile 从指定文件加载配置；filePath 为空时只使用环境变量和默认值。
// 优先级：配置文件 > 环境变量 > 默认值
func LoadFromFile(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		loaded, err := loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
		cf = loaded
	}

	cfg := &Config{
		Server: ServerConfig{
			Listen: pick(cf.Server.Listen, getEnv("SIGNALDESK_LISTEN", ":8080")),
			DBPath: pick(cf.Server.DBPath, getEnv("SIGNALDESK_DB", "data/signaldesk.db")),
		},
		Log: LogConfig{
			Level:      pick(cf.Log.Level, getEnv("LOG_LEVEL", "info")),
			File:       pick(cf.Log.File, getEnv("LOG_FILE", "logs/signaldesk.log")),
			MaxSize:    pickInt(cf.Log.MaxSize, parseIntEnv("LOG_MAX_SIZE", 100)),
			MaxBackups: pickInt(cf.Log.MaxBackups, parseIntEnv("LOG_MAX_BACKUPS", 3)),
			MaxAge:     pickInt(cf.Log.MaxAge, parseIntEnv("LOG_MAX_AGE", 7)),
			Compress: func() bool {
				if cf.Log.Compress != nil {
					return *cf.Log.Compress
				}
				return parseBoolEnv("LOG_COMPRESS", true)
			}(),
		},
		Feeds: normalizeFeeds(cf.Feeds),
		Sync: SyncConfig{
			Interval: pickDuration(cf.Sync.Interval.Duration, parseDurationEnv("SIGNALDESK_SYNC_INTERVAL", 0)),
			MinGap:   pickDuration(cf.Sync.MinGap.Duration, parseDurationEnv("SIGNALDESK_SYNC_MIN_GAP", 30*time.Second)),
		},
		Bars: BarsConfig{
			Provider: strings.ToLower(pick(cf.Bars.Provider, getEnv("SIGNALDESK_BARS_PROVIDER", "none"))),
			BaseURL:  pick(cf.Bars.BaseURL, getEnv("SIGNALDESK_BARS_BASE_URL", "")),
			Interval: pick(cf.Bars.Interval, getEnv("SIGNALDESK_BARS_INTERVAL", "1h")),
			CacheDir: pick(cf.Bars.CacheDir, getEnv("SIGNALDESK_BARS_CACHE_DIR", "")),
			CacheTTL: pickDuration(cf.Bars.CacheTTL.Duration, parseDurationEnv("SIGNALDESK_BARS_CACHE_TTL", 10*time.Minute)),
		},
		Stream: StreamConfig{
			Enabled: cf.Stream.Enabled || parseBoolEnv("SIGNALDESK_STREAM_ENABLED", false),
			Symbols: func() []string {
				if len(cf.Stream.Symbols) > 0 {
					return cf.Stream.Symbols
				}
				return parseList(getEnv("SIGNALDESK_STREAM_SYMBOLS", ""))
			}(),
			Interval: pick(cf.Stream.Interval, getEnv("SIGNALDESK_STREAM_INTERVAL", "1m")),
			ProxyURL: pick(cf.Stream.ProxyURL, getEnv("HTTPS_PROXY", "")),
		},
		Insight: InsightConfig{
			Provider: strings.ToLower(pick(cf.Insight.Provider, getEnv("SIGNALDESK_INSIGHT_PROVIDER", "rule"))),
			APIKey:   pick(cf.Insight.APIKey, getEnv("OPENAI_API_KEY", "")),
			Model:    pick(cf.Insight.Model, getEnv("OPENAI_MODEL", "gpt-4o-mini")),
			BaseURL:  pick(cf.Insight.BaseURL, getEnv("OPENAI_BASE_URL", "https://api.openai.com")),
			Timeout:  pickDuration(cf.Insight.Timeout.Duration, parseDurationEnv("SIGNALDESK_INSIGHT_TIMEOUT", 30*time.Second)),
			CacheTTL: pickDuration(cf.Insight.CacheTTL.Duration, parseDurationEnv("SIGNALDESK_INSIGHT_CACHE_TTL", time.Hour)),
		},
		Analysis: AnalysisConfig{
			ExpiryWindow:    pickDuration(cf.Analysis.ExpiryWindow.Duration, parseDurationEnv("SIGNALDESK_EXPIRY_WINDOW", 0)),
			DefaultInterval: pick(cf.Analysis.DefaultInterval, getEnv("SIGNALDESK_DEFAULT_INTERVAL", "1h")),
		},
		Metrics: MetricsConfig{
			Listen: pick(cf.Metrics.Listen, getEnv("SIGNALDESK_METRICS_LISTEN", "")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cf ConfigFile
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return &cf, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen 不能为空")
	}
	if strings.TrimSpace(c.Server.DBPath) == "" {
		return fmt.Errorf("server.db_path 不能为空")
	}
	switch c.Bars.Provider {
	case "none":
	case "rest":
		if c.Bars.BaseURL == "" {
			return fmt.Errorf("bars.provider=rest 需要配置 bars.base_url")
		}
	case "binance":
	default:
		return fmt.Errorf("未知的 bars.provider: %s", c.Bars.Provider)
	}
	switch c.Insight.Provider {
	case "rule":
	case "openai":
		if c.Insight.APIKey == "" {
			return fmt.Errorf("insight.provider=openai 需要配置 insight.api_key 或 OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("未知的 insight.provider: %s", c.Insight.Provider)
	}
	if c.Sync.Interval < 0 || c.Sync.MinGap < 0 {
		return fmt.Errorf("sync.interval / sync.min_gap 不能为负数")
	}
	if c.Analysis.ExpiryWindow < 0 {
		return fmt.Errorf("analysis.expiry_window 不能为负数")
	}
	if c.Stream.Enabled && len(c.Stream.Symbols) == 0 {
		return fmt.Errorf("stream.enabled=true 时 stream.symbols 不能为空")
	}

	seen := make(map[string]struct{}, len(c.Feeds))
	for i, f := range c.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feeds[%d].name 不能为空", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("feeds[%d].name 重复: %s", i, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.URL == "" {
			return fmt.Errorf("feed %s: url 不能为空", f.Name)
		}
		if f.Format != "json" && f.Format != "csv" {
			return fmt.Errorf("feed %s: 不支持的 format %q", f.Name, f.Format)
		}
	}
	return nil
}

func normalizeFeeds(in []FeedConfig) []FeedConfig {
	out := make([]FeedConfig, 0, len(in))
	for _, f := range in {
		f.Name = strings.TrimSpace(f.Name)
		f.URL = strings.TrimSpace(f.URL)
		f.Format = strings.ToLower(strings.TrimSpace(f.Format))
		if f.Format == "" {
			f.Format = "json"
		}
		f.Source = strings.ToLower(strings.TrimSpace(f.Source))
		if f.Source == "" {
			f.Source = "internal"
		}
		out = append(out, f)
	}
	return out
}

func pick(fileValue, fallback string) string {
	if strings.TrimSpace(fileValue) != "" {
		return strings.TrimSpace(fileValue)
	}
	return fallback
}

func pickInt(fileValue, fallback int) int {
	if fileValue > 0 {
		return fileValue
	}
	return fallback
}

func pickDuration(fileValue, fallback time.Duration) time.Duration {
	if fileValue > 0 {
		return fileValue
	}
	return fallback
}

// parseList 解析逗号分隔列表
func parseList(str string) []string {
	if str == "" {
		return nil
	}
	parts := strings.Split(str, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseDurationEnv 解析 duration 环境变量（"15m" 或秒数）
func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
