package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/metrics"
	"github.com/betbot/aviatorbot/internal/risk"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/pkg/config"
	"github.com/betbot/aviatorbot/pkg/logger"
)

// Configure 配置策略参数并持久化
func (t *Tracker) Configure(ctx context.Context, kind strategy.Kind, p strategy.Params) error {
	t.mu.Lock()
	err := t.engine.Configure(kind, p)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if err := store.SaveParams(ctx, t.store, p); err != nil {
		return fmt.Errorf("save params: %w", err)
	}
	t.publish()
	return nil
}

// Activate 切换激活策略并持久化。激活非 none 策略会清除已保存的停用事件。
func (t *Tracker) Activate(ctx context.Context, kind strategy.Kind) error {
	t.mu.Lock()
	err := t.engine.Activate(kind)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if err := store.SaveActive(ctx, t.store, kind); err != nil {
		return fmt.Errorf("save active: %w", err)
	}
	if kind != strategy.KindNone {
		if err := store.SaveStop(ctx, t.store, nil); err != nil {
			return fmt.Errorf("clear stop event: %w", err)
		}
	}
	t.publish()
	return nil
}

// SetBankroll 更新 high_risk 资金；触发止损时停用状态同样落库
func (t *Tracker) SetBankroll(ctx context.Context, v float64) error {
	t.mu.Lock()
	before := t.engine.Active()
	err := t.engine.SetBankroll(v)
	var stop *strategy.StopEvent
	if err == nil && before != strategy.KindNone && t.engine.Active() == strategy.KindNone {
		stop = t.engine.LastStop()
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if err := t.store.Set(ctx, store.KeyBankroll, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return err
	}
	if stop != nil {
		t.saveStop(ctx, stop)
	}
	t.publish()
	return nil
}

// SetSniper 开关真实下注
func (t *Tracker) SetSniper(ctx context.Context, armed bool) error {
	t.mu.Lock()
	t.sniperArmed = armed
	t.mu.Unlock()
	log.Infof("sniper armed=%v", armed)
	if err := t.store.Set(ctx, store.KeySniperArmed, strconv.FormatBool(armed)); err != nil {
		return err
	}
	t.publish()
	return nil
}

// SetAntiAFK 开关 anti-AFK
func (t *Tracker) SetAntiAFK(ctx context.Context, enabled bool) error {
	t.mu.Lock()
	t.antiAFK.Enabled = enabled
	t.mu.Unlock()
	log.Infof("anti-AFK enabled=%v", enabled)
	if err := t.store.Set(ctx, store.KeyAntiAFK, strconv.FormatBool(enabled)); err != nil {
		return err
	}
	t.publish()
	return nil
}

// NewSession 开启新 session：session 号加一、切换日志文件、重置记账和断路器。
// 历史不清空，过滤器不需要重新校准。
func (t *Tracker) NewSession(ctx context.Context, startingBalance float64) (int64, error) {
	t.mu.Lock()
	t.session++
	id := t.session
	t.ledger.Reset(startingBalance)
	t.breaker.ResetSession()
	t.roundsSinceBet = 0
	t.lastSettled = nil
	t.mu.Unlock()

	if err := logger.SetSession(id); err != nil {
		log.Warnf("切换 session 日志失败: %v", err)
	}
	log.Infof("新 session #%d", id)
	if err := t.store.Set(ctx, store.KeySession, strconv.FormatInt(id, 10)); err != nil {
		return id, err
	}
	t.publish()
	return id, nil
}

// Session 当前 session 号
func (t *Tracker) Session() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Counters 当前 session 的持久化统计
func (t *Tracker) Counters(ctx context.Context) (store.Counters, error) {
	return t.store.Counters(ctx, t.Session())
}

// Halt / Resume 手动控制断路器
func (t *Tracker) Halt() {
	t.breaker.Halt()
	t.publish()
}

func (t *Tracker) Resume() {
	t.breaker.Resume()
	t.publish()
}

// ManualClick 控制面手动触发一次点击（测试按钮 / 刷新页面）
func (t *Tracker) ManualClick(ctx context.Context, cmd clicker.Command) (clicker.Result, error) {
	res, err := t.exec.Execute(ctx, cmd)
	t.mu.Lock()
	t.afterClick(ctx, cmd, nil, res, err)
	t.mu.Unlock()
	return res, err
}

// ApplyConfig 配置文件热更新：重新配置文件里参数有变化的策略，并更新过滤器、风控和 anti-AFK。
// 激活策略只在与当前不同时切换，避免重置正在运行的递进状态。
func (t *Tracker) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	metrics.ConfigReloads.Add(1)
	for kind, p := range cfg.Strategies.Params() {
		t.mu.Lock()
		cur, ok := t.engine.Params(kind)
		t.mu.Unlock()
		// 参数没变的策略不重新配置，保留递进状态
		if ok && cur == p {
			continue
		}
		if err := t.Configure(ctx, kind, p); err != nil {
			return fmt.Errorf("configure %s: %w", kind, err)
		}
	}

	t.mu.Lock()
	if cfg.Filter.CooldownEnabled {
		t.filter.SetCooldown(gates.NewCooldownStage(cfg.Filter.Cooldown))
	} else {
		t.filter.SetCooldown(nil)
	}
	t.target = cfg.Filter.Target
	t.antiAFK.MinRounds = cfg.AntiAFK.MinRounds
	t.antiAFK.MaxRounds = cfg.AntiAFK.MaxRounds
	t.antiAFK.Enabled = cfg.AntiAFK.Enabled
	t.stallTimeout = cfg.OCR.StallTimeout
	t.breaker.SetConfig(BreakerConfig(cfg.Risk))
	active := t.engine.Active()
	t.mu.Unlock()

	want, err := strategy.ParseKind(cfg.Strategies.Active)
	if err != nil {
		return err
	}
	if want != active {
		return t.Activate(ctx, want)
	}
	t.publish()
	return nil
}

// BreakerConfig 从配置生成断路器参数
func BreakerConfig(rc config.RiskConfig) risk.CircuitBreakerConfig {
	return risk.CircuitBreakerConfig{
		MaxConsecutiveErrors: int64(rc.MaxConsecutiveErrors),
		MaxSessionLoss:       rc.MaxSessionLoss,
		TakeProfit:           rc.TakeProfit,
	}
}
