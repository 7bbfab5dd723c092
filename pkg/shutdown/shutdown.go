package shutdown

import (
	"context"
	"sync"

	"github.com/betbot/aviatorbot/pkg/logger"
)

// Handler 关闭处理函数；ctx 带超时
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器。
// 回调分两类：OnShutdown 注册的回调并发执行；Finally 注册的回调在前者全部结束后按注册顺序执行（如关闭存储）。
type Manager struct {
	mu        sync.Mutex
	callbacks []namedHandler
	finally   []namedHandler
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Finally 注册最后执行的回调
func (m *Manager) Finally(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finally = append(m.finally, namedHandler{name: name, fn: handler})
}

// Shutdown 执行所有关闭回调（阻塞调用）。返回超时或失败的回调数。
func (m *Manager) Shutdown(ctx context.Context) int {
	m.mu.Lock()
	callbacks := append([]namedHandler(nil), m.callbacks...)
	finally := append([]namedHandler(nil), m.finally...)
	m.mu.Unlock()

	if len(callbacks)+len(finally) == 0 {
		logger.Infof("没有注册的关闭回调")
		return 0
	}
	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks)+len(finally))

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   int
	)
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(h namedHandler) {
			defer wg.Done()
			if err := h.fn(ctx); err != nil {
				logger.Warnf("关闭回调 %s 失败: %v", h.name, err)
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
		failedMu.Lock()
		failed++
		failedMu.Unlock()
	}

	for _, h := range finally {
		if err := h.fn(ctx); err != nil {
			logger.Warnf("关闭回调 %s 失败: %v", h.name, err)
			failed++
		}
	}
	failedMu.Lock()
	defer failedMu.Unlock()
	if failed == 0 {
		logger.Infof("所有关闭回调已完成")
	}
	return failed
}
