// Package dashboard 终端看板（Bubble Tea）。日志需要在启动前关闭 stdout 输出，否则会打乱界面。
package dashboard

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/betbot/aviatorbot/internal/tracker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var log = logrus.WithField("module", "dashboard")

// Source 看板的数据源和快捷键动作（由 tracker.Tracker 实现）
type Source interface {
	Snapshot() tracker.Snapshot
	Subscribe(buffer int) (<-chan tracker.Snapshot, func())
	Halt()
	Resume()
	SetSniper(ctx context.Context, armed bool) error
	SetAntiAFK(ctx context.Context, enabled bool) error
}

type Dashboard struct {
	src   Source
	title string

	mu          sync.Mutex
	program     *tea.Program
	programDone chan struct{}
	unsubscribe func()
}

func New(src Source, title string) *Dashboard {
	if title == "" {
		title = "Aviator Bot"
	}
	return &Dashboard{src: src, title: title}
}

// Start 非终端环境（例如重定向到文件、systemd）直接跳过
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.program != nil {
		return nil
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Infof("stdout 不是终端，跳过看板")
		return nil
	}

	updates, unsubscribe := d.src.Subscribe(16)
	d.unsubscribe = unsubscribe
	m := newModel(ctx, d.title, d.src, updates)
	d.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	d.programDone = make(chan struct{})

	prog, done := d.program, d.programDone
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("Dashboard UI panic: %v", r)
			}
			close(done)
		}()
		if _, err := prog.Run(); err != nil && ctx.Err() == nil {
			log.Errorf("Dashboard UI 运行错误: %v", err)
		}
	}()
	return nil
}

// Stop 退出界面并恢复终端
func (d *Dashboard) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.program == nil {
		return
	}
	d.program.Quit()
	select {
	case <-d.programDone:
	case <-time.After(time.Second):
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.program = nil
}
