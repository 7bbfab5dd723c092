package gates

import (
	"testing"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

// hist 按最新在前构造历史，时间间隔 10s
func hist(ms ...float64) domain.History {
	h := make(domain.History, len(ms))
	for i, m := range ms {
		h[i] = domain.RoundOutcome{
			Multiplier: m,
			Timestamp:  t0.Add(-time.Duration(i) * 10 * time.Second),
			Outcome:    domain.OutcomeNone,
		}
	}
	return h
}

// passing 一组能通过全部五个子过滤器的 12 局历史
func passing() []float64 {
	return []float64{2.10, 1.90, 1.70, 2.40, 1.28, 3.10, 1.60, 1.05, 5.00, 1.80, 1.10, 1.20}
}

func TestEvaluate_Calibrating(t *testing.T) {
	for n := 0; n < MinRounds; n++ {
		ok, tr := Evaluate(hist(passing()[:n]...), 2.0)
		assert.False(t, ok)
		assert.Equal(t, StageCalibrating, tr.Stage)
		assert.Equal(t, 0, tr.FailedFilter)
		for _, v := range tr.Filters {
			assert.False(t, v)
		}
	}
}

func TestEvaluate_Approved(t *testing.T) {
	ok, tr := Evaluate(hist(passing()...), 2.0)
	require.True(t, ok)
	assert.Equal(t, StageApproved, tr.Stage)
	assert.Equal(t, 0, tr.FailedFilter)
	for _, name := range FilterOrder {
		assert.True(t, tr.Filters[name], name)
	}
	assert.Equal(t, 12, tr.Rounds)
	assert.Equal(t, 2.0, tr.Target)
}

func TestEvaluate_ChannelFailsRegardlessOfTail(t *testing.T) {
	tails := [][]float64{
		passing()[1:],
		{1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
		{100, 200, 300, 50, 60, 70, 80, 90, 41, 42, 43},
	}
	for _, tail := range tails {
		ok, tr := Evaluate(hist(append([]float64{3.0}, tail...)...), 2.0)
		assert.False(t, ok)
		assert.Equal(t, 1, tr.FailedFilter)
		assert.Equal(t, StageFilter, tr.Stage)
		assert.False(t, tr.Filters[FilterChannel])
	}
}

func TestEvaluate_EachFilterFailure(t *testing.T) {
	mutate := func(f func(m []float64)) domain.History {
		m := passing()
		f(m)
		return hist(m...)
	}
	cases := []struct {
		name   string
		h      domain.History
		failed int
	}{
		{"channel low", mutate(func(m []float64) { m[0] = 1.64 }), 1},
		{"channel high", mutate(func(m []float64) { m[0] = 2.86 }), 1},
		{"continuity at floor", mutate(func(m []float64) { m[1] = 1.25 }), 2},
		{"density two low", mutate(func(m []float64) { m[2] = 1.29 }), 3},
		{"spike in window", mutate(func(m []float64) { m[9] = 40.01 }), 4},
		{"support only four", mutate(func(m []float64) { m[2], m[3], m[5], m[6] = 1.5, 1.5, 1.5, 1.5 }), 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, tr := Evaluate(tc.h, 2.0)
			assert.False(t, ok)
			assert.Equal(t, tc.failed, tr.FailedFilter)
			assert.NotEmpty(t, tr.Reason)
			// 失败之前的子过滤器都已通过，之后的未评估
			for i, name := range FilterOrder {
				assert.Equal(t, i+1 < tc.failed, tr.Filters[name], name)
			}
		})
	}
}

func TestEvaluate_ChannelBoundsInclusive(t *testing.T) {
	for _, last := range []float64{1.65, 2.85} {
		m := passing()
		m[0] = last
		ok, _ := Evaluate(hist(m...), 2.0)
		assert.True(t, ok, last)
	}
}

func TestEvaluate_SpikeOutsideWindowIgnored(t *testing.T) {
	m := passing()
	m[10] = 500
	ok, _ := Evaluate(hist(m...), 2.0)
	assert.True(t, ok)
}

func TestFilter_StoresLastDecision(t *testing.T) {
	f := New(nil)
	_, has := f.Last()
	assert.False(t, has)

	ok, _ := f.Evaluate(hist(passing()...), 2.0, time.Time{}, time.Time{})
	assert.True(t, ok)
	last, has := f.Last()
	require.True(t, has)
	assert.Equal(t, StageApproved, last.Stage)
	assert.False(t, last.EvaluatedAt.IsZero())
}

func TestFilter_CooldownOnlyAfterCore(t *testing.T) {
	f := New(NewCooldownStage(DefaultCooldownConfig()))
	f.now = func() time.Time { return t0 }

	// 核心失败：trace 来自核心，不进入冷却阶段
	m := passing()
	m[0] = 3.0
	ok, tr := f.Evaluate(hist(m...), 2.0, t0, time.Time{})
	assert.False(t, ok)
	assert.Equal(t, StageFilter, tr.Stage)

	// 核心通过，但刚赢过
	ok, tr = f.Evaluate(hist(passing()...), 2.0, t0.Add(-25*time.Second), time.Time{})
	assert.False(t, ok)
	assert.Equal(t, StageCooldown, tr.Stage)
	assert.Contains(t, tr.Reason, "win cooldown")
	assert.Equal(t, 0, tr.FailedFilter)
}
