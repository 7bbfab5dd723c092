package tracker

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/ledger"
	"github.com/betbot/aviatorbot/internal/ocr"
	"github.com/betbot/aviatorbot/internal/risk"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/store/sqlitestore"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) Execute(ctx context.Context, cmd clicker.Command) (clicker.Result, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(clicker.Result), args.Error(1)
}

func clickType(ct string) any {
	return mock.MatchedBy(func(c clicker.Command) bool { return c.ClickType == ct })
}

// 按时间正序喂入后，过滤器恰好通过（最新一局 2.10）
var approvingRounds = []float64{1.20, 1.10, 1.80, 5.00, 1.05, 1.60, 3.10, 1.28, 2.40, 1.70, 1.90, 2.10}

type fixture struct {
	tr    *Tracker
	exec  *mockExecutor
	store store.Store
	cb    *risk.CircuitBreaker
	clock time.Time
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	s, err := sqlitestore.Open(":memory:", 50)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return newFixtureWithStore(t, s, mutate)
}

func newFixtureWithStore(t *testing.T, s store.Store, mutate func(*Options)) *fixture {
	t.Helper()
	eng := strategy.NewEngine()
	require.NoError(t, eng.Configure(strategy.KindMartingale,
		strategy.MartingaleParams{BaseBet: 1, Target: 1.5, MaxDoubles: 3}))
	require.NoError(t, eng.Activate(strategy.KindMartingale))

	f := &fixture{
		exec:  &mockExecutor{},
		store: s,
		cb:    risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: 3}),
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	opt := Options{
		Engine:      eng,
		Filter:      gates.New(nil),
		Store:       s,
		Executor:    f.exec,
		Breaker:     f.cb,
		Ledger:      ledger.New(100),
		Target:      1.11,
		SniperArmed: true,
		Rand:        rand.New(rand.NewPCG(7, 11)),
		Now:         func() time.Time { return f.clock },
	}
	if mutate != nil {
		mutate(&opt)
	}
	f.tr = New(opt)
	return f
}

func (f *fixture) feed(ctx context.Context, vals ...float64) {
	for _, v := range vals {
		f.clock = f.clock.Add(10 * time.Second)
		f.tr.Observe(ctx, ocr.Reading{Value: v, At: f.clock})
	}
}

func TestTracker_FiresWhenApprovedAndSettlesNextRound(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil).Once()
	ctx := t.Context()

	f.feed(ctx, approvingRounds...)
	snap := f.tr.Snapshot()
	require.NotNil(t, snap.Pending)
	assert.Equal(t, 1.0, snap.Pending.Primary.Amount)
	assert.Equal(t, 1.5, snap.Pending.Primary.Target)
	require.NotNil(t, snap.Trace)
	assert.True(t, snap.Trace.Decision)

	// 1.20 < 1.5：输，马丁翻倍；通道过滤不通过，不再下注
	f.feed(ctx, 1.20)
	snap = f.tr.Snapshot()
	assert.Nil(t, snap.Pending)
	assert.Equal(t, 1, snap.Ledger.Losses)
	assert.Equal(t, -1.0, snap.Ledger.PnL)
	assert.Equal(t, 2.0, snap.Strategy.States[strategy.KindMartingale].CurrentBet)
	assert.Equal(t, domain.OutcomeLoss, snap.Rounds[0].Outcome)
	assert.Equal(t, domain.OutcomeNone, snap.Rounds[1].Outcome)
	assert.Equal(t, -1.0, f.cb.SessionPnL())

	c, err := f.tr.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, c.Rounds)
	assert.Equal(t, 1, c.Losses)
	assert.Equal(t, 0, c.Wins)
	assert.Equal(t, 1, c.ClickBet)

	f.exec.AssertExpectations(t)
}

func TestTracker_WinResetsMartingale(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil)
	ctx := t.Context()

	f.feed(ctx, approvingRounds...)
	f.feed(ctx, 1.50) // 等于目标算赢
	snap := f.tr.Snapshot()
	assert.Equal(t, 1, snap.Ledger.Wins)
	assert.Equal(t, 0.5, snap.Ledger.PnL)
	assert.Equal(t, 1.0, snap.Strategy.States[strategy.KindMartingale].CurrentBet)
	assert.Equal(t, domain.OutcomeWin, snap.Rounds[0].Outcome)
}

func TestTracker_SniperDisarmedNeverClicks(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SniperArmed = false })
	f.feed(t.Context(), approvingRounds...)

	snap := f.tr.Snapshot()
	assert.True(t, snap.Trace.Decision)
	assert.Nil(t, snap.Pending)
	f.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestTracker_NoActiveStrategyNeverClicks(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.tr.Activate(t.Context(), strategy.KindNone))
	f.feed(t.Context(), approvingRounds...)
	assert.Nil(t, f.tr.Snapshot().Pending)
	f.exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestTracker_AntiAFK(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.AntiAFK = AntiAFK{Enabled: true, MinRounds: 2, MaxRounds: 2}
	})
	f.exec.On("Execute", mock.Anything, mock.MatchedBy(func(c clicker.Command) bool {
		return c.ClickType == store.ClickFake &&
			c.Action == clicker.ActionSequence &&
			len(c.Steps) == 2 && c.Steps[0].Target == "btn1" && c.Steps[1].Target == "btn1"
	})).Return(clicker.Result{Clicks: 2}, nil).Twice()

	f.feed(t.Context(), 1.01, 1.02, 1.03, 1.04, 1.05)
	f.exec.AssertExpectations(t)
	assert.Equal(t, 1, f.tr.Snapshot().RoundsSinceBet)

	c, err := f.tr.Counters(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, c.ClickFake)
	assert.Zero(t, c.Wins+c.Losses, "没有真实下注的局不计输赢")
}

func TestTracker_ClickFailureCountsTowardsBreaker(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Breaker = risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: 1})
	})
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{}, errors.New("click service down")).Once()
	ctx := t.Context()

	f.feed(ctx, approvingRounds...)
	snap := f.tr.Snapshot()
	assert.Nil(t, snap.Pending, "点击失败不算下注")

	// 再来一轮可通过的序列：断路器已满足熔断条件，不再点击
	f.feed(ctx, 1.90, 2.10)
	snap = f.tr.Snapshot()
	assert.True(t, snap.Halted)
	assert.Equal(t, risk.ReasonClickErrors, snap.HaltReason)

	c, err := f.tr.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ClickErrors)
	f.exec.AssertExpectations(t)
}

func TestTracker_DualBetUsesBothButtonsAndNetPnL(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	require.NoError(t, f.tr.Configure(ctx, strategy.KindDual,
		strategy.DualParams{Bet1: 1, Target1: 1.5, Bet2: 1, Target2: 3.0}))
	require.NoError(t, f.tr.Activate(ctx, strategy.KindDual))

	f.exec.On("Execute", mock.Anything, mock.MatchedBy(func(c clicker.Command) bool {
		return c.ClickType == store.ClickBet && len(c.Steps) == 2 &&
			c.Steps[0].Target == "btn1" && c.Steps[1].Target == "btn2"
	})).Return(clicker.Result{Clicks: 2}, nil).Once()

	f.feed(ctx, approvingRounds...)
	// 1.6：第一注赢、第二注输，且通道过滤不通过
	f.feed(ctx, 1.6)

	snap := f.tr.Snapshot()
	require.Len(t, snap.LastSettled, 2)
	assert.Equal(t, domain.OutcomeWin, snap.LastSettled[0].Outcome)
	assert.Equal(t, domain.OutcomeLoss, snap.LastSettled[1].Outcome)
	assert.Equal(t, -0.5, snap.Ledger.PnL)
	assert.Equal(t, domain.OutcomeLoss, snap.Rounds[0].Outcome)
	f.exec.AssertExpectations(t)
}

func TestTracker_DuplicateReadingIgnored(t *testing.T) {
	f := newFixture(t, nil)
	at := f.clock
	assert.True(t, f.tr.Observe(t.Context(), ocr.Reading{Value: 1.5, At: at}))
	assert.False(t, f.tr.Observe(t.Context(), ocr.Reading{Value: 1.5, At: at.Add(time.Second)}))
	assert.Len(t, f.tr.History(0), 1)
}

func TestTracker_CheckStallReloadsOncePerPeriod(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.StallTimeout = time.Minute })
	f.exec.On("Execute", mock.Anything, mock.MatchedBy(func(c clicker.Command) bool {
		return c.ClickType == store.ClickReload && c.Action == clicker.ActionReload
	})).Return(clicker.Result{}, nil).Once()
	ctx := t.Context()

	assert.False(t, f.tr.CheckStall(ctx))
	f.clock = f.clock.Add(61 * time.Second)
	assert.True(t, f.tr.CheckStall(ctx))
	assert.False(t, f.tr.CheckStall(ctx), "刷新后重新计时")

	c, err := f.tr.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ClickReload)
	f.exec.AssertExpectations(t)
}

func TestTracker_RestoreFromStore(t *testing.T) {
	s, err := sqlitestore.Open(":memory:", 50)
	require.NoError(t, err)
	defer s.Close()
	ctx := t.Context()

	a := newFixtureWithStore(t, s, nil)
	require.NoError(t, a.tr.Configure(ctx, strategy.KindFibonacci,
		strategy.FibonacciParams{BaseBet: 2, Target: 2, MaxPosition: 5}))
	require.NoError(t, a.tr.Activate(ctx, strategy.KindFibonacci))
	require.NoError(t, a.tr.SetSniper(ctx, false))
	require.NoError(t, a.tr.SetAntiAFK(ctx, false))
	_, err = a.tr.NewSession(ctx, 100)
	require.NoError(t, err)
	a.feed(ctx, 1.3, 1.4, 1.5)

	b := newFixtureWithStore(t, s, func(o *Options) {
		o.Engine = strategy.NewEngine()
		o.SniperArmed = true
		o.AntiAFK = DefaultAntiAFK()
	})
	require.NoError(t, b.tr.Restore(ctx))

	snap := b.tr.Snapshot()
	assert.Equal(t, strategy.KindFibonacci, snap.Strategy.Active)
	assert.Equal(t, int64(2), snap.Session)
	assert.False(t, snap.SniperArmed)
	assert.False(t, snap.AntiAFK)
	hist := b.tr.History(0)
	require.Len(t, hist, 3)
	assert.Equal(t, 1.5, hist[0].Multiplier)
	assert.Equal(t, 1.3, hist[2].Multiplier)
}

func TestTracker_NewSessionResetsLedgerAndBreaker(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	f.cb.Halt()

	id, err := f.tr.NewSession(ctx, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	snap := f.tr.Snapshot()
	assert.False(t, snap.Halted)
	assert.Equal(t, 250.0, snap.Ledger.Balance)

	raw, ok, err := f.store.Get(ctx, store.KeySession)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", raw)
}

func TestTracker_ConfigureRejectsInvalidParams(t *testing.T) {
	f := newFixture(t, nil)
	err := f.tr.Configure(t.Context(), strategy.KindMartingale,
		strategy.MartingaleParams{BaseBet: 0, Target: 2, MaxDoubles: 1})
	require.ErrorIs(t, err, strategy.ErrInvalidParameter)

	_, ok, err := f.store.Get(t.Context(), store.ParamsKey(string(strategy.KindMartingale)))
	require.NoError(t, err)
	assert.False(t, ok, "无效参数不落库")
}

func TestTracker_SubscribeReceivesSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	ch, cancel := f.tr.Subscribe(4)
	defer cancel()

	f.feed(t.Context(), 1.5)
	select {
	case snap := <-ch:
		assert.Len(t, snap.Rounds, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestTracker_RunUntilSourceEnds(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Now = time.Now })
	src := ocr.NewLineSource(strings.NewReader("1.50x\n1.50x\n2.00\nnoise\n3.1x\n"), ocr.DefaultParser)

	require.NoError(t, f.tr.Run(t.Context(), src))
	hist := f.tr.History(0)
	require.Len(t, hist, 3)
	assert.Equal(t, 3.1, hist[0].Multiplier)
}

func TestTracker_ApplyConfig(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	cfg := config.Default()
	cfg.Strategies.Active = string(strategy.KindMartingale)
	cfg.AntiAFK.Enabled = false
	cfg.Risk.MaxSessionLoss = 5
	cfg.Filter.Target = 1.3

	// 激活的策略不变时不重置递进状态
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil).Once()
	f.feed(ctx, approvingRounds...)
	f.feed(ctx, 1.20)
	require.NoError(t, f.tr.ApplyConfig(ctx, cfg))
	snap := f.tr.Snapshot()
	assert.Equal(t, strategy.KindMartingale, snap.Strategy.Active)
	assert.Equal(t, 2.0, snap.Strategy.States[strategy.KindMartingale].CurrentBet)
	assert.False(t, snap.AntiAFK)

	cfg.Strategies.Active = string(strategy.KindFibonacci)
	cfg.Strategies.Fibonacci = &strategy.FibonacciParams{BaseBet: 3, Target: 2, MaxPosition: 5}
	require.NoError(t, f.tr.ApplyConfig(ctx, cfg))
	snap = f.tr.Snapshot()
	assert.Equal(t, strategy.KindFibonacci, snap.Strategy.Active)
	assert.Equal(t, 3.0, snap.Strategy.States[strategy.KindFibonacci].CurrentBet)

	// 已配置的参数会被持久化
	raw, ok, err := f.store.Get(ctx, store.ParamsKey(string(strategy.KindFibonacci)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"base_bet":3`)

	cfg.Strategies.Fibonacci = &strategy.FibonacciParams{BaseBet: -1, Target: 2, MaxPosition: 5}
	assert.ErrorIs(t, f.tr.ApplyConfig(ctx, cfg), strategy.ErrInvalidParameter)
	f.exec.AssertExpectations(t)
}

func TestTracker_StopLossSurvivesRestart(t *testing.T) {
	s, err := sqlitestore.Open(":memory:", 50)
	require.NoError(t, err)
	defer s.Close()
	ctx := t.Context()

	a := newFixtureWithStore(t, s, nil)
	require.NoError(t, a.tr.Configure(ctx, strategy.KindHighRisk,
		strategy.HighRiskParams{Bankroll: 100, Percent: 5, Target: 1.5, StopLoss: 3}))
	require.NoError(t, a.tr.Activate(ctx, strategy.KindHighRisk))
	a.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil).Once()

	a.feed(ctx, approvingRounds...)
	a.feed(ctx, 1.20) // 输 5，亏损 5% >= 3%
	snap := a.tr.Snapshot()
	assert.Equal(t, strategy.KindNone, snap.Strategy.Active)
	require.NotNil(t, snap.Strategy.LastStop)

	raw, ok, err := s.Get(ctx, store.KeyActiveStrategy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(strategy.KindNone), raw)

	eng := strategy.NewEngine()
	b := newFixtureWithStore(t, s, func(o *Options) { o.Engine = eng })
	require.NoError(t, b.tr.Restore(ctx))

	assert.Equal(t, strategy.KindNone, eng.Active())
	ins, err := eng.NextStake()
	require.NoError(t, err)
	assert.Nil(t, ins, "重启后不能自动恢复下注")
	stop := b.tr.Snapshot().Strategy.LastStop
	require.NotNil(t, stop)
	assert.Equal(t, strategy.KindHighRisk, stop.Kind)
	assert.Contains(t, stop.Reason, "stop loss")
	a.exec.AssertExpectations(t)
}

func TestTracker_SetBankrollStopPersisted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	require.NoError(t, f.tr.Configure(ctx, strategy.KindHighRisk,
		strategy.HighRiskParams{Bankroll: 5000, Percent: 5, Target: 10, StopLoss: 30}))
	require.NoError(t, f.tr.Activate(ctx, strategy.KindHighRisk))

	require.NoError(t, f.tr.SetBankroll(ctx, 3500))
	raw, _, err := f.store.Get(ctx, store.KeyActiveStrategy)
	require.NoError(t, err)
	assert.Equal(t, string(strategy.KindNone), raw)
	ev, err := store.LoadStop(ctx, f.store)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, strategy.KindHighRisk, ev.Kind)

	// 重新激活后清除停用事件
	require.NoError(t, f.tr.Activate(ctx, strategy.KindHighRisk))
	ev, err = store.LoadStop(ctx, f.store)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestTracker_SwitchWhilePendingSettlesWithoutAdvancingNewStrategy(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil).Once()

	f.feed(ctx, approvingRounds...)
	require.NotNil(t, f.tr.Snapshot().Pending)
	require.NoError(t, f.tr.Configure(ctx, strategy.KindFibonacci,
		strategy.FibonacciParams{BaseBet: 10, Target: 2, MaxPosition: 8}))
	require.NoError(t, f.tr.Activate(ctx, strategy.KindFibonacci))

	f.feed(ctx, 1.20)
	snap := f.tr.Snapshot()
	assert.Equal(t, 1, snap.Ledger.Losses, "马丁的注码照常结算")
	assert.Equal(t, -1.0, snap.Ledger.PnL)
	fib := snap.Strategy.States[strategy.KindFibonacci]
	assert.Equal(t, 0, fib.Position)
	assert.Equal(t, 10.0, fib.CurrentBet)
	f.exec.AssertExpectations(t)
}

func TestTracker_HighRiskBankrollRestored(t *testing.T) {
	s, err := sqlitestore.Open(":memory:", 50)
	require.NoError(t, err)
	defer s.Close()
	ctx := t.Context()

	a := newFixtureWithStore(t, s, nil)
	require.NoError(t, a.tr.Configure(ctx, strategy.KindHighRisk,
		strategy.HighRiskParams{Bankroll: 100, Percent: 10, Target: 1.5, StopLoss: 50}))
	require.NoError(t, a.tr.Activate(ctx, strategy.KindHighRisk))
	a.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil).Once()

	a.feed(ctx, approvingRounds...)
	a.feed(ctx, 1.6) // 赢 10*(1.5-1)=5
	assert.Equal(t, 105.0, a.tr.Snapshot().Strategy.States[strategy.KindHighRisk].Bankroll)

	raw, ok, err := s.Get(ctx, store.KeyBankroll)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "105", raw)

	b := newFixtureWithStore(t, s, func(o *Options) { o.Engine = strategy.NewEngine() })
	require.NoError(t, b.tr.Restore(ctx))
	st := b.tr.Snapshot().Strategy
	assert.Equal(t, strategy.KindHighRisk, st.Active)
	assert.Equal(t, 105.0, st.States[strategy.KindHighRisk].Bankroll)
	assert.Equal(t, 10.5, st.States[strategy.KindHighRisk].CurrentBet)
	a.exec.AssertExpectations(t)
}

func TestTracker_FailedBetClickKeepsConservativeAlternation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	require.NoError(t, f.tr.Configure(ctx, strategy.KindConservative,
		strategy.ConservativeParams{Bet: 1, Target1: 1.5, Target2: 3, Alternate: true}))
	require.NoError(t, f.tr.Activate(ctx, strategy.KindConservative))
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{}, errors.New("click service down")).Once()

	f.feed(ctx, approvingRounds...)
	snap := f.tr.Snapshot()
	assert.Nil(t, snap.Pending)
	assert.True(t, snap.Strategy.States[strategy.KindConservative].UseTarget1,
		"没下出去的注不消耗目标交替")
	f.exec.AssertExpectations(t)
}

func TestTracker_ApplyConfigKeepsProgressionWhenParamsUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	f.exec.On("Execute", mock.Anything, clickType(store.ClickBet)).
		Return(clicker.Result{Clicks: 1}, nil).Once()

	f.feed(ctx, approvingRounds...)
	f.feed(ctx, 1.20)
	require.Equal(t, 2.0, f.tr.Snapshot().Strategy.States[strategy.KindMartingale].CurrentBet)

	cfg := config.Default()
	cfg.Strategies.Active = string(strategy.KindMartingale)
	cfg.Strategies.Martingale = &strategy.MartingaleParams{BaseBet: 1, Target: 1.5, MaxDoubles: 3}
	require.NoError(t, f.tr.ApplyConfig(ctx, cfg))
	assert.Equal(t, 2.0, f.tr.Snapshot().Strategy.States[strategy.KindMartingale].CurrentBet)

	// 参数变化时重新配置
	cfg.Strategies.Martingale = &strategy.MartingaleParams{BaseBet: 5, Target: 1.5, MaxDoubles: 3}
	require.NoError(t, f.tr.ApplyConfig(ctx, cfg))
	assert.Equal(t, 5.0, f.tr.Snapshot().Strategy.States[strategy.KindMartingale].CurrentBet)
	f.exec.AssertExpectations(t)
}

func TestTracker_Health(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.StallTimeout = time.Minute })
	require.NoError(t, f.tr.Health())

	f.clock = f.clock.Add(2 * time.Minute)
	err := f.tr.Health()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no OCR reading")

	f.feed(t.Context(), 1.5)
	require.NoError(t, f.tr.Health())

	f.cb.Halt()
	err = f.tr.Health()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "halted")
}
