package clicker

import (
	"context"
	"sync"
	"time"
)

// DryRunExecutor 只记录日志，不发出点击。用于演练和测试。
type DryRunExecutor struct {
	mu       sync.Mutex
	executed []Command
}

func NewDryRunExecutor() *DryRunExecutor { return &DryRunExecutor{} }

func (d *DryRunExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	clicks := 1
	switch cmd.Action {
	case ActionSequence:
		clicks = len(cmd.Steps)
	case ActionReload:
		clicks = 0
	}
	d.mu.Lock()
	d.executed = append(d.executed, cmd)
	d.mu.Unlock()
	log.Infof("[dryrun] %s %s target=%s steps=%d", cmd.ClickType, cmd.Action, cmd.Target, len(cmd.Steps))
	return Result{CommandID: cmd.ID, Clicks: clicks, Took: time.Since(start)}, nil
}

// Executed 已“执行”的命令
func (d *DryRunExecutor) Executed() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.executed...)
}
