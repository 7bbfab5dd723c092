package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var watchLog = logrus.WithField("module", "config.watcher")

// ChangeListener 配置文件变更并校验通过后被调用
type ChangeListener func(*Config)

// Watcher 监听配置文件，变更后重新 Load 并通知监听器。
// 监听的是所在目录：很多编辑器保存时是“写临时文件 + rename”。
type Watcher struct {
	path     string
	debounce time.Duration

	mu        sync.RWMutex
	current   *Config
	version   int64
	listeners []ChangeListener
}

// NewWatcher 加载一次配置并返回 watcher；需调用 Run 开始监听
func NewWatcher(path string) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, debounce: 300 * time.Millisecond, current: cfg, version: 1}, nil
}

// Current 当前生效的配置
func (w *Watcher) Current() (*Config, int64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, w.version
}

// Subscribe 注册监听器
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Run 阻塞直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	target := filepath.Clean(w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			// 合并短时间内的多次写入
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			watchLog.Warnf("fs watcher error: %v", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		watchLog.Errorf("config reload failed (%s): %v", filepath.Base(w.path), err)
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.version++
	version := w.version
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()

	watchLog.Infof("配置已重新加载: %s (version=%d)", filepath.Base(w.path), version)
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					watchLog.Errorf("config listener panic: %v", r)
				}
			}()
			fn(cfg)
		}()
	}
}
