// Package storetest 两个存储实现共用的行为测试
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory 返回一个 historyLimit 为 limit 的空存储
type Factory func(t *testing.T, limit int) store.Store

// Run 执行全部行为测试
func Run(t *testing.T, open Factory) {
	t.Run("KV", func(t *testing.T) { testKV(t, open(t, 50)) })
	t.Run("RoundsPruned", func(t *testing.T) { testRoundsPruned(t, open(t, 15)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, open(t, 50)) })
	t.Run("Snapshot", func(t *testing.T) { testSnapshot(t, open(t, 50)) })
}

func testKV(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", ""))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	require.NoError(t, s.Set(ctx, "k", "v2"))
	v, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func testRoundsPruned(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 20; i++ {
		_, err := s.AppendRound(ctx, store.RoundRecord{
			SessionID:  1,
			Multiplier: float64(i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Result:     domain.OutcomeNone,
			TargetUsed: 2.0,
		})
		require.NoError(t, err)
	}

	got, err := s.RecentRounds(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 15)
	assert.Equal(t, 20.0, got[0].Multiplier)
	assert.Equal(t, 6.0, got[14].Multiplier)
	assert.True(t, got[0].Timestamp.Equal(base.Add(20*time.Second)))

	got, err = s.RecentRounds(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 19, 18}, []float64{got[0].Multiplier, got[1].Multiplier, got[2].Multiplier})

	// 统计不受清理影响
	c, err := s.Counters(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, c.Rounds)
}

func testCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	rounds := []store.RoundRecord{
		{SessionID: 7, Multiplier: 2.5, Timestamp: now, ClickType: store.ClickBet, Result: domain.OutcomeWin, TargetUsed: 2},
		{SessionID: 7, Multiplier: 1.1, Timestamp: now, ClickType: store.ClickBet, Result: domain.OutcomeLoss, TargetUsed: 2},
		{SessionID: 7, Multiplier: 3.0, Timestamp: now, ClickType: store.ClickFake, Result: domain.OutcomeWin, TargetUsed: 2},
		{SessionID: 8, Multiplier: 3.0, Timestamp: now, ClickType: store.ClickBet, Result: domain.OutcomeWin, TargetUsed: 2},
	}
	for _, r := range rounds {
		_, err := s.AppendRound(ctx, r)
		require.NoError(t, err)
	}
	clicks := []store.ClickRecord{
		{CommandID: "a", SessionID: 7, ClickType: store.ClickBet, Target: "btn1", Success: true, Timestamp: now},
		{CommandID: "b", SessionID: 7, ClickType: store.ClickFake, Target: "btn1", Success: true, Timestamp: now},
		{CommandID: "c", SessionID: 7, ClickType: store.ClickBet, Target: "btn1", Success: false, Error: "timeout", Timestamp: now},
		{CommandID: "d", SessionID: 7, ClickType: store.ClickReload, Success: true, Timestamp: now},
	}
	for _, c := range clicks {
		require.NoError(t, s.AppendClick(ctx, c))
	}

	c, err := s.Counters(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.Counters{
		SessionID: 7, Rounds: 3, Wins: 1, Losses: 1,
		ClickBet: 1, ClickFake: 1, ClickReload: 1, ClickErrors: 1,
	}, c)

	empty, err := s.Counters(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, store.Counters{SessionID: 99}, empty)
}

func testSnapshot(t *testing.T, s store.Store) {
	ctx := context.Background()
	kind, err := store.LoadActive(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, strategy.KindNone, kind)

	p := strategy.FibonacciParams{BaseBet: 20, Target: 1.8, MaxPosition: 6}
	require.NoError(t, store.SaveParams(ctx, s, p))
	require.NoError(t, store.SaveActive(ctx, s, strategy.KindFibonacci))
	// 坏数据被跳过而不是中断恢复
	require.NoError(t, s.Set(ctx, store.ParamsKey(string(strategy.KindDual)), `{"bet1":-1}`))

	params, skipped, err := store.LoadParams(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, map[strategy.Kind]strategy.Params{strategy.KindFibonacci: p}, params)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], strategy.ErrInvalidParameter)

	kind, err = store.LoadActive(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, strategy.KindFibonacci, kind)

	require.NoError(t, s.Set(ctx, store.KeySession, "42"))
	sess, err := store.GetInt64(ctx, s, store.KeySession, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sess)

	armed, err := store.GetBool(ctx, s, store.KeySniperArmed, true)
	require.NoError(t, err)
	assert.True(t, armed)
}
