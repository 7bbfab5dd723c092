// Package syncgroup 管理一组后台 goroutine 的生命周期：自动 Add/Done，记录 panic 和错误。
package syncgroup

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "syncgroup")

type Func func(ctx context.Context) error

// Result 一个 goroutine 的退出结果
type Result struct {
	Name string
	Err  error
}

// SyncGroup 是 sync.WaitGroup 的包装器。任意一个 goroutine 退出时都会推送到 Done()，
// 由调用方决定是否整体退出。
type SyncGroup struct {
	wg   sync.WaitGroup
	done chan Result

	mu      sync.Mutex
	running map[string]struct{}
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{
		done:    make(chan Result, 16),
		running: make(map[string]struct{}),
	}
}

// Go 启动一个命名 goroutine；同名 goroutine 仍在运行时返回错误
func (g *SyncGroup) Go(ctx context.Context, name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("syncgroup: %s: nil func", name)
	}
	g.mu.Lock()
	if _, ok := g.running[name]; ok {
		g.mu.Unlock()
		return fmt.Errorf("syncgroup: %s already running", name)
	}
	g.running[name] = struct{}{}
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				log.Errorf("[%s] %v", name, err)
			}
			g.mu.Lock()
			delete(g.running, name)
			g.mu.Unlock()
			select {
			case g.done <- Result{Name: name, Err: err}:
			default:
			}
			g.wg.Done()
		}()
		err = fn(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warnf("[%s] 退出: %v", name, err)
		}
	}()
	return nil
}

// Done 每个 goroutine 退出时推送一次（缓冲满时丢弃）
func (g *SyncGroup) Done() <-chan Result { return g.done }

// Running 正在运行的 goroutine 数量
func (g *SyncGroup) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}

// Wait 等待所有 goroutine 完成；ctx 到期时返回 ctx.Err()
func (g *SyncGroup) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
