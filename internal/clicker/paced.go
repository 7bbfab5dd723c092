package clicker

import (
	"context"
	"sync"
	"time"
)

// Pacer 基于时间的节流门：
// - Ready 判断距上一次 Mark 是否已超过最小间隔；
// - Mark 记录一次成功动作的时间。
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

func (p *Pacer) SetInterval(interval time.Duration) {
	p.mu.Lock()
	p.interval = interval
	p.mu.Unlock()
}

func (p *Pacer) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Ready 不更新内部状态；返回还需要等待的时长
func (p *Pacer) Ready(now time.Time) (ready bool, wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval <= 0 || p.last.IsZero() {
		return true, 0
	}
	since := now.Sub(p.last)
	if since >= p.interval {
		return true, 0
	}
	return false, p.interval - since
}

func (p *Pacer) Mark(now time.Time) {
	p.mu.Lock()
	p.last = now
	p.mu.Unlock()
}

// Reset 清空上一次动作时间（下一次 Ready 返回 true）
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.last = time.Time{}
	p.mu.Unlock()
}

// Paced 给 Executor 加上最小点击间隔：间隔未到时等待，而不是丢弃命令。
type Paced struct {
	next  Executor
	pacer *Pacer
	now   func() time.Time
}

func NewPaced(next Executor, interval time.Duration) *Paced {
	return &Paced{next: next, pacer: NewPacer(interval), now: time.Now}
}

// Pacer 暴露给配置热更新
func (p *Paced) Pacer() *Pacer { return p.pacer }

func (p *Paced) Execute(ctx context.Context, cmd Command) (Result, error) {
	for {
		ready, wait := p.pacer.Ready(p.now())
		if ready {
			break
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return Result{}, err
		}
	}
	res, err := p.next.Execute(ctx, cmd)
	// 失败的点击也可能已经落到页面上，同样计入间隔
	p.pacer.Mark(p.now())
	return res, err
}
