// Package tracker 是观测主循环：每读到一局新倍数，结算上一注、推进注码引擎、
// 写入历史、运行过滤器，并决定是否下注或做一次 anti-AFK 点击。
//
// Tracker 独占 Engine 和 Filter；控制面的所有修改都通过 Tracker 的方法在同一把锁下进行。
package tracker

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/ledger"
	"github.com/betbot/aviatorbot/internal/metrics"
	"github.com/betbot/aviatorbot/internal/ocr"
	"github.com/betbot/aviatorbot/internal/risk"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "tracker")

// AntiAFK 连续 MinRounds~MaxRounds 局（随机）没有下注时，点一次下注再立即取消。
type AntiAFK struct {
	Enabled   bool
	MinRounds int
	MaxRounds int
	// 下注与取消之间的随机停顿范围
	CancelDelayMin time.Duration
	CancelDelayMax time.Duration
}

// DefaultAntiAFK 2~4 局，停顿 200~500ms
func DefaultAntiAFK() AntiAFK {
	return AntiAFK{
		Enabled:        true,
		MinRounds:      2,
		MaxRounds:      4,
		CancelDelayMin: 200 * time.Millisecond,
		CancelDelayMax: 500 * time.Millisecond,
	}
}

// Options 构造 Tracker 所需的协作方和参数
type Options struct {
	Engine   *strategy.Engine
	Filter   *gates.Filter
	Store    store.Store
	Executor clicker.Executor
	Breaker  *risk.CircuitBreaker
	Ledger   *ledger.Ledger

	HistoryCapacity int
	// Target 没有下注时判定输赢、以及过滤器记录用的目标倍数
	Target       float64
	BetTarget    string
	SecondTarget string
	AntiAFK      AntiAFK
	SniperArmed  bool
	// StallTimeout 超过该时长没有新读数则刷新页面；<=0 关闭 watchdog
	StallTimeout time.Duration
	// DedupeGap 同一数值间隔超过该时长再次出现时视为新一局
	DedupeGap time.Duration

	Rand *rand.Rand
	Now  func() time.Time
}

// Tracker 观测主循环
type Tracker struct {
	mu sync.Mutex

	engine    *strategy.Engine
	filter    *gates.Filter
	store     store.Store
	exec      clicker.Executor
	breaker   *risk.CircuitBreaker
	ledger    *ledger.Ledger
	history   *domain.HistoryBuffer
	deduper   ocr.Deduper
	rng       *rand.Rand
	now       func() time.Time
	target    float64
	betBtn    string
	secondBtn string

	antiAFK      AntiAFK
	afkThreshold int
	sniperArmed  bool
	stallTimeout time.Duration

	session        int64
	pending        *strategy.BetInstruction
	roundsSinceBet int
	lastWin        time.Time
	lastLoss       time.Time
	lastActivity   time.Time
	lastSettled    []ledger.Settlement
	lastTrace      *gates.FilterTrace

	subsMu sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// New 创建 Tracker；Engine、Filter、Store、Executor 必须提供
func New(opt Options) *Tracker {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Rand == nil {
		seed := uint64(opt.Now().UnixNano())
		opt.Rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if opt.Ledger == nil {
		opt.Ledger = ledger.New(0)
	}
	if opt.Target <= 0 {
		opt.Target = 1.11
	}
	if opt.BetTarget == "" {
		opt.BetTarget = "btn1"
	}
	if opt.SecondTarget == "" {
		opt.SecondTarget = "btn2"
	}
	t := &Tracker{
		engine:       opt.Engine,
		filter:       opt.Filter,
		store:        opt.Store,
		exec:         opt.Executor,
		breaker:      opt.Breaker,
		ledger:       opt.Ledger,
		history:      domain.NewHistoryBuffer(opt.HistoryCapacity),
		deduper:      ocr.Deduper{Gap: opt.DedupeGap},
		rng:          opt.Rand,
		now:          opt.Now,
		target:       opt.Target,
		betBtn:       opt.BetTarget,
		secondBtn:    opt.SecondTarget,
		antiAFK:      opt.AntiAFK,
		sniperArmed:  opt.SniperArmed,
		stallTimeout: opt.StallTimeout,
		session:      1,
		lastActivity: opt.Now(),
		subs:         make(map[int]chan Snapshot),
	}
	t.afkThreshold = t.nextAFKThreshold()
	return t
}

// Observe 处理一次 OCR 读数。重复读数（同一局）直接忽略并返回 false。
func (t *Tracker) Observe(ctx context.Context, r ocr.Reading) bool {
	t.mu.Lock()
	if !t.deduper.Accept(r) {
		t.mu.Unlock()
		return false
	}
	metrics.RoundsObserved.Add(1)
	t.lastActivity = r.At

	rec := t.settle(ctx, r)
	t.history.Push(rec.Outcome())
	if _, err := t.store.AppendRound(ctx, rec); err != nil {
		metrics.StoreErrors.Add(1)
		log.Errorf("保存局记录失败: %v", err)
	}

	ok, tr := t.filter.Evaluate(t.history.Snapshot(), t.target, t.lastWin, t.lastLoss)
	t.lastTrace = &tr
	countTrace(ok, tr)

	cmd, ins := t.decide(ok)
	t.mu.Unlock()

	// 点击可能较慢（节流、HTTP），不持锁执行
	if cmd != nil {
		res, err := t.exec.Execute(ctx, *cmd)
		t.mu.Lock()
		t.afterClick(ctx, *cmd, ins, res, err)
		t.mu.Unlock()
	}

	t.publish()
	return true
}

// settle 结算挂起的下注并推进引擎，返回本局的持久化记录。调用方持锁。
func (t *Tracker) settle(ctx context.Context, r ocr.Reading) store.RoundRecord {
	rec := store.RoundRecord{
		SessionID:  t.session,
		Multiplier: r.Value,
		Timestamp:  r.At,
		TargetUsed: t.target,
		Result:     domain.Resolve(r.Value, t.target),
	}
	t.lastSettled = nil
	if t.pending == nil {
		return rec
	}

	ins := t.pending
	t.pending = nil
	pnl := 0.0
	for _, leg := range ins.Legs() {
		s := t.ledger.Settle(leg.Amount, leg.Target, r.Value)
		t.lastSettled = append(t.lastSettled, s)
		pnl += s.PnL
	}
	// 双注按净盈亏判定输赢
	outcome := domain.OutcomeLoss
	if pnl > 0 {
		outcome = domain.OutcomeWin
	}
	if !ins.IsDual() {
		outcome = t.lastSettled[0].Outcome
	}

	rec.ClickType = store.ClickBet
	rec.TargetUsed = ins.Primary.Target
	rec.Result = outcome

	t.breaker.AddPnL(pnl)
	// 下注后切换过策略：只记账，不推进新策略的递进状态
	if active := t.engine.Active(); ins.Kind != active {
		log.Warnf("下注策略 %s 已不再激活（当前 %s），跳过注码推进", ins.Kind, active)
	} else if err := t.engine.ApplyOutcome(outcome, pnl); err != nil {
		log.Errorf("推进注码失败: %v", err)
	} else {
		metrics.OutcomesApplied.Add(1)
		t.persistProgress(ctx, active)
	}
	if outcome == domain.OutcomeWin {
		t.lastWin = r.At
	} else {
		t.lastLoss = r.At
	}
	log.Infof("结算: %s x%.2f -> %s pnl=%.2f balance=%.2f", ins, r.Value, outcome, pnl, t.ledger.Balance())
	return rec
}

// persistProgress 保存 ApplyOutcome 带来的需要跨重启保留的状态：high_risk 资金和自动停用。调用方持锁。
func (t *Tracker) persistProgress(ctx context.Context, applied strategy.Kind) {
	if applied == strategy.KindHighRisk {
		if v, ok := t.engine.Bankroll(); ok {
			t.saveBankroll(ctx, v)
		}
	}
	if t.engine.Active() == strategy.KindNone {
		t.saveStop(ctx, t.engine.LastStop())
	}
}

func (t *Tracker) saveBankroll(ctx context.Context, v float64) {
	if err := t.store.Set(ctx, store.KeyBankroll, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		metrics.StoreErrors.Add(1)
		log.Errorf("保存 high_risk 资金失败: %v", err)
	}
}

// saveStop 策略被自动停用后把 active=none 和停用事件落库，重启后不会重新激活
func (t *Tracker) saveStop(ctx context.Context, ev *strategy.StopEvent) {
	if err := store.SaveActive(ctx, t.store, strategy.KindNone); err != nil {
		metrics.StoreErrors.Add(1)
		log.Errorf("保存激活策略失败: %v", err)
	}
	if err := store.SaveStop(ctx, t.store, ev); err != nil {
		metrics.StoreErrors.Add(1)
		log.Errorf("保存停用事件失败: %v", err)
	}
}

// decide 根据过滤结论决定本局的点击。调用方持锁。
func (t *Tracker) decide(approved bool) (*clicker.Command, *strategy.BetInstruction) {
	if approved {
		if cmd, ins := t.fireCommand(); cmd != nil {
			return cmd, ins
		}
	}

	t.roundsSinceBet++
	if !t.antiAFK.Enabled || t.roundsSinceBet < t.afkThreshold {
		return nil, nil
	}
	log.Infof("ANTI-AFK 触发（已 %d 局未下注）", t.roundsSinceBet)
	cmd := clicker.Sequence(store.ClickFake,
		clicker.Step{Target: t.betBtn},
		clicker.Step{Target: t.betBtn, Delay: t.cancelDelay()},
	)
	return &cmd, nil
}

// fireCommand 过滤通过后尝试生成真实下注命令
func (t *Tracker) fireCommand() (*clicker.Command, *strategy.BetInstruction) {
	if !t.sniperArmed {
		log.Infof("信号出现（sniper 未启用）")
		return nil, nil
	}
	if err := t.breaker.AllowTrading(); err != nil {
		log.Warnf("信号出现但不允许下注: %v", err)
		return nil, nil
	}
	if t.pending != nil {
		return nil, nil
	}
	ins, err := t.engine.NextStake()
	if err != nil {
		log.Errorf("计算注码失败: %v", err)
		return nil, nil
	}
	if ins == nil {
		return nil, nil
	}
	var cmd clicker.Command
	if ins.IsDual() {
		cmd = clicker.Sequence(store.ClickBet,
			clicker.Step{Target: t.betBtn},
			clicker.Step{Target: t.secondBtn},
		)
	} else {
		cmd = clicker.Click(store.ClickBet, t.betBtn)
	}
	log.Infof("🎯 下注: %s", ins)
	return &cmd, ins
}

// afterClick 记录点击结果。调用方持锁。
func (t *Tracker) afterClick(ctx context.Context, cmd clicker.Command, ins *strategy.BetInstruction, res clicker.Result, err error) {
	rec := store.ClickRecord{
		CommandID: cmd.ID,
		SessionID: t.session,
		ClickType: cmd.ClickType,
		Target:    cmd.Target,
		Success:   err == nil,
		Timestamp: t.now(),
	}
	if rec.Target == "" && len(cmd.Steps) > 0 {
		rec.Target = cmd.Steps[0].Target
	}
	if err != nil {
		rec.Error = err.Error()
		t.breaker.OnError()
		metrics.ClickErrors.Add(1)
		log.Errorf("点击失败: type=%s err=%v", cmd.ClickType, err)
		if cmd.ClickType == store.ClickBet {
			t.engine.CancelStake(ins)
		}
	} else {
		t.breaker.OnSuccess()
		switch cmd.ClickType {
		case store.ClickBet:
			t.pending = ins
			metrics.BetsFired.Add(1)
		case store.ClickFake:
			metrics.FakeBets.Add(1)
		case store.ClickReload:
			metrics.Reloads.Add(1)
		}
		if cmd.ClickType == store.ClickBet || cmd.ClickType == store.ClickFake {
			t.roundsSinceBet = 0
			t.afkThreshold = t.nextAFKThreshold()
		}
		log.Debugf("点击完成: type=%s clicks=%d took=%s", cmd.ClickType, res.Clicks, res.Took)
	}
	if err := t.store.AppendClick(ctx, rec); err != nil {
		metrics.StoreErrors.Add(1)
		log.Errorf("保存点击记录失败: %v", err)
	}
}

func (t *Tracker) nextAFKThreshold() int {
	lo, hi := t.antiAFK.MinRounds, t.antiAFK.MaxRounds
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return lo + t.rng.IntN(hi-lo+1)
}

func (t *Tracker) cancelDelay() time.Duration {
	lo, hi := t.antiAFK.CancelDelayMin, t.antiAFK.CancelDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(t.rng.Int64N(int64(hi-lo)))
}

func countTrace(ok bool, tr gates.FilterTrace) {
	switch {
	case ok:
		metrics.FilterApproved.Add(1)
	case tr.Stage == gates.StageCalibrating:
	case tr.Stage == gates.StageCooldown:
		metrics.FilterBlocks.Add(1)
		metrics.FilterBlocksBy.Add(gates.StageCooldown, 1)
	default:
		metrics.FilterBlocks.Add(1)
		if tr.FailedFilter > 0 && tr.FailedFilter <= len(gates.FilterOrder) {
			metrics.FilterBlocksBy.Add(gates.FilterOrder[tr.FailedFilter-1], 1)
		}
	}
}
