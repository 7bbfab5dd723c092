package strategy

import (
	"fmt"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "strategy")

// StopEvent 策略因终止条件（如止损）被自动停用的记录
type StopEvent struct {
	Kind   Kind      `json:"kind"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Status 引擎状态快照
type Status struct {
	Active   Kind               `json:"active"`
	States   map[Kind]StateView `json:"states"`
	LastStop *StopEvent         `json:"last_stop,omitempty"`
}

// Engine 注码引擎：每种策略一份递进状态，同一时刻最多一个处于激活状态。
//
// Engine 不是并发安全的：调用方必须串行调用（每局 NextStake 一次、ApplyOutcome 一次）。
type Engine struct {
	states   map[Kind]progression
	active   Kind
	lastStop *StopEvent
	now      func() time.Time
}

// NewEngine 创建未配置任何策略的引擎（active=none）
func NewEngine() *Engine {
	return &Engine{
		states: make(map[Kind]progression),
		active: KindNone,
		now:    time.Now,
	}
}

// Configure 校验并保存策略参数，同时把该策略的运行状态重置为初始值。
// 校验失败时返回 ErrInvalidParameter，原有状态不受影响。
func (e *Engine) Configure(kind Kind, p Params) error {
	if kind == KindNone {
		return fmt.Errorf("%w: cannot configure %q", ErrInvalidParameter, kind)
	}
	if p == nil {
		return fmt.Errorf("%w: %s params missing", ErrInvalidParameter, kind)
	}
	if p.Kind() != kind {
		return fmt.Errorf("%w: params for %s given to %s", ErrInvalidParameter, p.Kind(), kind)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	e.states[kind] = newProgression(p)
	log.Infof("策略已配置: kind=%s params=%+v", kind, p)
	return nil
}

// Activate 切换激活策略。kind=none 表示停止自动下注。
// 激活会重置该策略的运行状态（包括止损锁定），不影响其它策略。
func (e *Engine) Activate(kind Kind) error {
	if kind == KindNone {
		if e.active != KindNone {
			log.Infof("策略已停用: kind=%s", e.active)
		}
		e.active = KindNone
		return nil
	}
	st, ok := e.states[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfigured, kind)
	}
	e.states[kind] = newProgression(st.params())
	e.active = kind
	e.lastStop = nil
	log.Infof("策略已激活: kind=%s", kind)
	return nil
}

// Active 当前激活的策略
func (e *Engine) Active() Kind { return e.active }

// IsConfigured 策略是否已配置
func (e *Engine) IsConfigured(kind Kind) bool {
	_, ok := e.states[kind]
	return ok
}

// Params 返回策略当前配置
func (e *Engine) Params(kind Kind) (Params, bool) {
	st, ok := e.states[kind]
	if !ok {
		return nil, false
	}
	return st.params(), true
}

// NextStake 计算下一局注码，不修改状态（conservative 的目标交替除外）。
// 没有激活策略或策略已因终止条件停用时返回 nil。
func (e *Engine) NextStake() (*BetInstruction, error) {
	if e.active == KindNone {
		return nil, nil
	}
	st, ok := e.states[e.active]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, e.active)
	}
	ins := st.next()
	return &ins, nil
}

// CancelStake 下注指令最终没有下出去（点击失败）时调用，撤销 NextStake 对状态的修改。
// 只对仍处于激活状态的同一策略生效。
func (e *Engine) CancelStake(ins *BetInstruction) {
	if ins == nil || ins.Kind != e.active {
		return
	}
	if c, ok := e.states[e.active].(interface{ cancel() }); ok {
		c.cancel()
	}
}

// ApplyOutcome 在一局结算后调用，按激活策略的递进规则更新状态。
// pnlDelta 为本局实际盈亏，high_risk 用它更新资金。
func (e *Engine) ApplyOutcome(o domain.Outcome, pnlDelta float64) error {
	if o != domain.OutcomeWin && o != domain.OutcomeLoss {
		return fmt.Errorf("%w: outcome %q", ErrInvalidParameter, o)
	}
	if e.active == KindNone {
		return nil
	}
	st, ok := e.states[e.active]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfigured, e.active)
	}
	if stop := st.apply(o, pnlDelta); stop != "" {
		e.deactivate(stop)
	}
	return nil
}

// SetBankroll 外部更新 high_risk 的当前资金。
// 若 high_risk 处于激活状态且亏损达到止损线，会立即停用。
func (e *Engine) SetBankroll(v float64) error {
	if v < 0 {
		return fmt.Errorf("%w: bankroll=%v", ErrInvalidParameter, v)
	}
	st, ok := e.states[KindHighRisk]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfigured, KindHighRisk)
	}
	hr := st.(*highRisk)
	if stop := hr.setBankroll(v); stop != "" && e.active == KindHighRisk {
		e.deactivate(stop)
	}
	return nil
}

// Bankroll high_risk 的当前资金；未配置时 ok=false
func (e *Engine) Bankroll() (v float64, ok bool) {
	st, ok := e.states[KindHighRisk]
	if !ok {
		return 0, false
	}
	return st.(*highRisk).current(), true
}

// LastStop 最近一次自动停用事件；重新激活后清空
func (e *Engine) LastStop() *StopEvent { return e.lastStop }

// RestoreStop 重启后恢复已持久化的停用事件，仅在没有激活策略时生效
func (e *Engine) RestoreStop(ev StopEvent) {
	if e.active != KindNone {
		return
	}
	e.lastStop = &ev
}

// Status 返回所有已配置策略的状态快照
func (e *Engine) Status() Status {
	out := Status{
		Active: e.active,
		States: make(map[Kind]StateView, len(e.states)),
	}
	for k, st := range e.states {
		out.States[k] = st.view()
	}
	if e.lastStop != nil {
		ev := *e.lastStop
		out.LastStop = &ev
	}
	return out
}

// deactivate 终止条件触发：重置该策略状态并回到 none，直到再次 Activate
func (e *Engine) deactivate(reason string) {
	kind := e.active
	st := e.states[kind]
	e.states[kind] = newProgression(st.params())
	e.active = KindNone
	e.lastStop = &StopEvent{Kind: kind, Reason: reason, At: e.now()}
	log.Warnf("策略自动停用: kind=%s reason=%s", kind, reason)
}
