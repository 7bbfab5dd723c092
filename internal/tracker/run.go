package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/ocr"
	"github.com/betbot/aviatorbot/internal/store"
)

// minStallCheck watchdog 检查周期下限
const minStallCheck = time.Second

// Run 从 src 读取读数直到 ctx 取消或来源结束（返回 nil）。
// 同时运行 watchdog：长时间没有新读数时刷新页面。
func (t *Tracker) Run(ctx context.Context, src ocr.Source) error {
	readings := make(chan ocr.Reading)
	errc := make(chan error, 1)
	go func() {
		for {
			r, err := src.Next(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case readings <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	var tick <-chan time.Time
	if period := t.stallCheckPeriod(); period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Infof("tracker 启动: session=%d", t.Session())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				log.Infof("OCR 来源结束")
				return nil
			}
			return err
		case r := <-readings:
			t.Observe(ctx, r)
		case <-tick:
			t.CheckStall(ctx)
		}
	}
}

func (t *Tracker) stallCheckPeriod() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stallTimeout <= 0 {
		return 0
	}
	p := t.stallTimeout / 4
	if p < minStallCheck {
		p = minStallCheck
	}
	return p
}

// CheckStall 超过 stallTimeout 没有新读数时发一次刷新命令，并重新计时。返回是否触发。
func (t *Tracker) CheckStall(ctx context.Context) bool {
	t.mu.Lock()
	now := t.now()
	if t.stallTimeout <= 0 || now.Sub(t.lastActivity) <= t.stallTimeout {
		t.mu.Unlock()
		return false
	}
	log.Warnf("超过 %s 没有 OCR 读数，刷新页面", t.stallTimeout)
	t.lastActivity = now
	t.deduper.Reset()
	t.mu.Unlock()

	cmd := clicker.Reload(store.ClickReload)
	res, err := t.exec.Execute(ctx, cmd)
	t.mu.Lock()
	t.afterClick(ctx, cmd, nil, res, err)
	t.mu.Unlock()
	t.publish()
	return true
}

// Health 断路器熔断或超过 stallTimeout 没有读数时返回错误
func (t *Tracker) Health() error {
	if halted, reason := t.breaker.Halted(); halted {
		return fmt.Errorf("trading halted: %s", reason)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idle := t.now().Sub(t.lastActivity); t.stallTimeout > 0 && idle > t.stallTimeout {
		return fmt.Errorf("no OCR reading for %s", idle.Round(time.Second))
	}
	return nil
}
