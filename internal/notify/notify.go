// Package notify 状态通知中心：记录最近的状态消息（拉取失败、导入结果等），供 API 展示为状态栏。
// 由调用方创建并注入，不是全局单例。
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice 一条状态消息
type Notice struct {
	Level   Level     `json:"level"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Center 定长环形缓冲，超出容量时覆盖最旧的消息
type Center struct {
	mu    sync.RWMutex
	buf   []Notice
	next  int
	count int
	now   func() time.Time
	log   *logrus.Entry
}

// NewCenter capacity<=0 时取 100
func NewCenter(capacity int) *Center {
	if capacity <= 0 {
		capacity = 100
	}
	return &Center{
		buf: make([]Notice, capacity),
		now: time.Now,
		log: logrus.WithField("component", "notify"),
	}
}

func (c *Center) Info(source, format string, args ...any) {
	c.publish(LevelInfo, source, fmt.Sprintf(format, args...))
}

func (c *Center) Warn(source, format string, args ...any) {
	c.publish(LevelWarn, source, fmt.Sprintf(format, args...))
}

func (c *Center) Error(source, format string, args ...any) {
	c.publish(LevelError, source, fmt.Sprintf(format, args...))
}

func (c *Center) publish(level Level, source, msg string) {
	n := Notice{Level: level, Source: source, Message: msg, Time: c.now()}

	c.mu.Lock()
	c.buf[c.next] = n
	c.next = (c.next + 1) % len(c.buf)
	if c.count < len(c.buf) {
		c.count++
	}
	c.mu.Unlock()

	entry := c.log.WithField("source", source)
	switch level {
	case LevelError:
		entry.Error(msg)
	case LevelWarn:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

// Recent 最近 n 条，最新的在前；n<=0 返回全部
func (c *Center) Recent(n int) []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n <= 0 || n > c.count {
		n = c.count
	}
	out := make([]Notice, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.next - i + len(c.buf)) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out
}

// Latest 最新一条
func (c *Center) Latest() (Notice, bool) {
	recent := c.Recent(1)
	if len(recent) == 0 {
		return Notice{}, false
	}
	return recent[0], true
}
