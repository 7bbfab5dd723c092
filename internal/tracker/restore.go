package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/strategy"
)

// Restore 从存储恢复上次运行留下的状态：策略参数、激活策略、停用事件、session、开关、high_risk 资金和最近历史。
// 应在 Run 之前调用。存储里的策略参数覆盖配置文件（它们来自运行期的控制面修改）。
func (t *Tracker) Restore(ctx context.Context) error {
	params, skipped, err := store.LoadParams(ctx, t.store)
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}
	for _, e := range skipped {
		log.Warnf("忽略无效的已保存策略参数: %v", e)
	}

	session, err := store.GetInt64(ctx, t.store, store.KeySession, 1)
	if err != nil {
		log.Warnf("读取 session 失败，使用 1: %v", err)
		session = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for kind, p := range params {
		if err := t.engine.Configure(kind, p); err != nil {
			log.Warnf("恢复策略参数 %s 失败: %v", kind, err)
		}
	}

	active, err := store.LoadActive(ctx, t.store)
	if err != nil {
		log.Warnf("读取激活策略失败: %v", err)
	} else if t.engine.IsConfigured(active) || active == strategy.KindNone {
		if err := t.engine.Activate(active); err != nil {
			log.Warnf("恢复激活策略 %s 失败: %v", active, err)
		}
	}

	if raw, ok, err := t.store.Get(ctx, store.KeyBankroll); err == nil && ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && t.engine.IsConfigured(strategy.KindHighRisk) {
			_ = t.engine.SetBankroll(v)
		}
	}

	if ev, err := store.LoadStop(ctx, t.store); err != nil {
		log.Warnf("读取停用事件失败: %v", err)
	} else if ev != nil {
		t.engine.RestoreStop(*ev)
	}

	if armed, err := store.GetBool(ctx, t.store, store.KeySniperArmed, t.sniperArmed); err == nil {
		t.sniperArmed = armed
	}
	if enabled, err := store.GetBool(ctx, t.store, store.KeyAntiAFK, t.antiAFK.Enabled); err == nil {
		t.antiAFK.Enabled = enabled
	}
	t.session = session

	rounds, err := t.store.RecentRounds(ctx, t.history.Capacity())
	if err != nil {
		return fmt.Errorf("load rounds: %w", err)
	}
	t.history.Reset()
	for i := len(rounds) - 1; i >= 0; i-- {
		t.history.Push(rounds[i].Outcome())
		switch rounds[i].Outcome().Outcome {
		case domain.OutcomeWin:
			t.lastWin = rounds[i].Timestamp
		case domain.OutcomeLoss:
			t.lastLoss = rounds[i].Timestamp
		}
	}
	log.Infof("状态已恢复: session=%d active=%s rounds=%d sniper=%v anti_afk=%v",
		t.session, t.engine.Active(), t.history.Len(), t.sniperArmed, t.antiAFK.Enabled)
	return nil
}
