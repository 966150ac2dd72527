package analysis

import (
	"context"
	"time"

	"github.com/betbot/signaldesk/pkg/sigchan"
)

// AutoSync 定时同步信号源；手动触发与定时触发共用最小间隔，避免短时间内重复拉取
type AutoSync struct {
	svc      *Service
	interval time.Duration
	minGap   time.Duration
	trigger  *sigchan.Chan

	last time.Time
	done chan struct{}
}

// NewAutoSync interval<=0 时只响应手动触发
func NewAutoSync(svc *Service, interval, minGap time.Duration) *AutoSync {
	return &AutoSync{
		svc:      svc,
		interval: interval,
		minGap:   minGap,
		trigger:  sigchan.New(1),
		done:     make(chan struct{}),
	}
}

// Trigger 请求一次同步；已有待处理请求时返回 false
func (a *AutoSync) Trigger() bool {
	return a.trigger.Emit()
}

// Run 阻塞运行直到 ctx 取消
func (a *AutoSync) Run(ctx context.Context) {
	defer close(a.done)

	var tick <-chan time.Time
	if a.interval > 0 {
		t := time.NewTicker(a.interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			a.syncOnce(ctx)
		case <-a.trigger.C():
			a.syncOnce(ctx)
		}
	}
}

// Done Run 退出后关闭
func (a *AutoSync) Done() <-chan struct{} { return a.done }

func (a *AutoSync) syncOnce(ctx context.Context) {
	now := a.svc.now()
	if !a.last.IsZero() && now.Sub(a.last) < a.minGap {
		log.Debugf("跳过信号同步：距上次 %s", now.Sub(a.last).Round(time.Second))
		return
	}
	a.last = now
	rep, err := a.svc.SyncFeeds(ctx)
	if err != nil {
		log.Warnf("信号同步失败: %v", err)
		return
	}
	log.Debugf("信号同步完成：入库 %d 条", rep.Stored)
}
