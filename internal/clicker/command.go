// Package clicker 把下注 / 取消 / 刷新等动作转换为点击命令，交给外部点击服务执行。
// 本进程不直接控制鼠标。
package clicker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action 命令类型
type Action string

const (
	ActionClick    Action = "click"    // 单击一个目标
	ActionSequence Action = "sequence" // 按顺序点击多个目标，步骤之间可以停顿
	ActionReload   Action = "reload"   // 刷新页面
)

// ErrEmptyCommand 命令没有可执行的目标
var ErrEmptyCommand = errors.New("clicker: empty command")

// Step 序列中的一步
type Step struct {
	Target string        `json:"target"`
	Delay  time.Duration `json:"delay"` // 执行本步之前的停顿
}

// Command 一次点击命令
type Command struct {
	ID        string    `json:"id"`
	ClickType string    `json:"click_type"` // store.ClickBet / ClickFake / ...
	Action    Action    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Steps     []Step    `json:"steps,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result 执行结果
type Result struct {
	CommandID string        `json:"command_id"`
	Clicks    int           `json:"clicks"`
	Points    []Point       `json:"points,omitempty"`
	Took      time.Duration `json:"took"`
}

// Executor 点击执行者
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

func newCommand(clickType string, action Action) Command {
	return Command{
		ID:        uuid.NewString(),
		ClickType: clickType,
		Action:    action,
		CreatedAt: time.Now(),
	}
}

// Click 单击命令
func Click(clickType, target string) Command {
	cmd := newCommand(clickType, ActionClick)
	cmd.Target = target
	return cmd
}

// Sequence 多步命令
func Sequence(clickType string, steps ...Step) Command {
	cmd := newCommand(clickType, ActionSequence)
	cmd.Steps = steps
	return cmd
}

// Reload 刷新命令
func Reload(clickType string) Command {
	return newCommand(clickType, ActionReload)
}

// Validate 检查命令是否可执行
func (c Command) Validate() error {
	switch c.Action {
	case ActionClick:
		if c.Target == "" {
			return ErrEmptyCommand
		}
	case ActionSequence:
		if len(c.Steps) == 0 {
			return ErrEmptyCommand
		}
		for _, s := range c.Steps {
			if s.Target == "" {
				return ErrEmptyCommand
			}
		}
	case ActionReload:
	default:
		return errors.New("clicker: unknown action " + string(c.Action))
	}
	return nil
}

// sleepCtx 可被 ctx 打断的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
