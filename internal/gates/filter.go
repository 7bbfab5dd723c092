package gates

import (
	"fmt"
	"sync"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "gates")

// 评估阶段
const (
	StageCalibrating = "calibrating"
	StageFilter      = "filter"
	StageCooldown    = "cooldown"
	StageApproved    = "approved"
)

// 子过滤器名称（按执行顺序）
const (
	FilterChannel    = "channel"
	FilterContinuity = "continuity"
	FilterDensity    = "density"
	FilterAntiSpike  = "anti_spike"
	FilterSupport    = "support"
)

// FilterOrder 子过滤器执行顺序；FailedFilter 是这里的 1-based 下标
var FilterOrder = []string{FilterChannel, FilterContinuity, FilterDensity, FilterAntiSpike, FilterSupport}

const (
	// MinRounds 少于该局数时处于校准期
	MinRounds = 12

	channelLow       = 1.65
	channelHigh      = 2.85
	continuityFloor  = 1.25
	densityWindow    = 5
	densityFloor     = 1.30
	densityMaxBelow  = 1
	spikeWindow      = 10
	spikeCeiling     = 40.0
	supportWindow    = 10
	supportFloor     = 1.50
	supportMinAbove  = 5
	defaultLogPeriod = 5 * time.Second
)

// FilterTrace 一次评估的诊断记录
type FilterTrace struct {
	Decision     bool            `json:"decision"`
	Stage        string          `json:"stage"`
	FailedFilter int             `json:"failed_filter"` // 1-based；0 表示没有子过滤器失败
	Reason       string          `json:"reason"`
	Filters      map[string]bool `json:"filters"`
	Target       float64         `json:"target"`
	Rounds       int             `json:"rounds"`
	EvaluatedAt  time.Time       `json:"evaluated_at"`
}

func newTrace(history domain.History, target float64) FilterTrace {
	filters := make(map[string]bool, len(FilterOrder))
	for _, name := range FilterOrder {
		filters[name] = false
	}
	return FilterTrace{Filters: filters, Target: target, Rounds: len(history)}
}

func (t *FilterTrace) fail(index int, reason string) {
	t.Decision = false
	t.Stage = StageFilter
	t.FailedFilter = index
	t.Reason = reason
}

// Evaluate 按固定顺序执行五个子过滤器，遇到第一个失败即返回。
// history 按时间倒序（index 0 为最新）。target 只记录在 trace 里，不参与判断。
func Evaluate(history domain.History, target float64) (bool, FilterTrace) {
	tr := newTrace(history, target)
	if len(history) < MinRounds {
		tr.Stage = StageCalibrating
		tr.Reason = fmt.Sprintf("calibrating (%d/%d rounds)", len(history), MinRounds)
		return false, tr
	}

	m := history.Multipliers(spikeWindow)
	last, prev := m[0], m[1]

	// 1) 通道
	if last < channelLow || last > channelHigh {
		tr.fail(1, fmt.Sprintf("channel: last %.2fx outside [%.2f, %.2f]", last, channelLow, channelHigh))
		return false, tr
	}
	tr.Filters[FilterChannel] = true

	// 2) 连续性
	if !(prev > continuityFloor) {
		tr.fail(2, fmt.Sprintf("continuity: previous %.2fx <= %.2f", prev, continuityFloor))
		return false, tr
	}
	tr.Filters[FilterContinuity] = true

	// 3) 低倍密度
	if below := countBelow(m[:densityWindow], densityFloor); below > densityMaxBelow {
		tr.fail(3, fmt.Sprintf("density: %d of last %d below %.2f", below, densityWindow, densityFloor))
		return false, tr
	}
	tr.Filters[FilterDensity] = true

	// 4) 大倍数后冷却
	if above := countAbove(m[:spikeWindow], spikeCeiling); above > 0 {
		tr.fail(4, fmt.Sprintf("anti_spike: %d of last %d above %.0fx", above, spikeWindow, spikeCeiling))
		return false, tr
	}
	tr.Filters[FilterAntiSpike] = true

	// 5) 支撑
	if above := countAbove(m[:supportWindow], supportFloor); above < supportMinAbove {
		tr.fail(5, fmt.Sprintf("support: only %d of last %d above %.2f", above, supportWindow, supportFloor))
		return false, tr
	}
	tr.Filters[FilterSupport] = true

	tr.Decision = true
	tr.Stage = StageApproved
	tr.Reason = "confirmed"
	return true, tr
}

func countBelow(xs []float64, floor float64) int {
	n := 0
	for _, x := range xs {
		if x < floor {
			n++
		}
	}
	return n
}

func countAbove(xs []float64, ceiling float64) int {
	n := 0
	for _, x := range xs {
		if x > ceiling {
			n++
		}
	}
	return n
}

// Filter 在 Evaluate 之上加一层可选的冷却扩展、最近结论缓存和限频日志。
type Filter struct {
	cooldown *CooldownStage
	now      func() time.Time

	// 轻量限频：避免每局都刷同一条拦截日志
	logMu        sync.Mutex
	lastLogAt    time.Time
	lastLogMsg   string
	logMinPeriod time.Duration

	// 最近一次结论（给 API / dashboard 展示用）
	lastMu    sync.RWMutex
	last      FilterTrace
	hasResult bool
}

// New 创建过滤器；cooldown 为 nil 时只运行五个核心子过滤器
func New(cooldown *CooldownStage) *Filter {
	return &Filter{
		cooldown:     cooldown,
		now:          time.Now,
		logMinPeriod: defaultLogPeriod,
	}
}

// SetCooldown 替换扩展阶段（配置热更新时使用），nil 表示关闭
func (f *Filter) SetCooldown(c *CooldownStage) {
	f.lastMu.Lock()
	f.cooldown = c
	f.lastMu.Unlock()
}

// Evaluate 运行核心级联；通过后若启用了冷却扩展再运行扩展阶段。
// lastWin/lastLoss 为最近一次实际下注赢/输的时间，零值表示没有。
func (f *Filter) Evaluate(history domain.History, target float64, lastWin, lastLoss time.Time) (bool, FilterTrace) {
	now := f.now()
	ok, tr := Evaluate(history, target)
	tr.EvaluatedAt = now

	f.lastMu.RLock()
	cd := f.cooldown
	f.lastMu.RUnlock()

	if ok && cd != nil {
		if pass, reason := cd.Evaluate(history, now, lastWin, lastLoss); !pass {
			ok = false
			tr.Decision = false
			tr.Stage = StageCooldown
			tr.Reason = reason
		}
	}

	f.store(tr)
	f.maybeLog(tr)
	return ok, tr
}

// Last 最近一次评估结果
func (f *Filter) Last() (FilterTrace, bool) {
	f.lastMu.RLock()
	defer f.lastMu.RUnlock()
	return f.last, f.hasResult
}

func (f *Filter) store(tr FilterTrace) {
	f.lastMu.Lock()
	f.last = tr
	f.hasResult = true
	f.lastMu.Unlock()
}

func (f *Filter) maybeLog(tr FilterTrace) {
	// 校准期和通过都不记 warn
	if tr.Decision || tr.Stage == StageCalibrating {
		return
	}
	f.logMu.Lock()
	defer f.logMu.Unlock()
	now := f.now()
	if tr.Reason == f.lastLogMsg && now.Sub(f.lastLogAt) < f.logMinPeriod {
		return
	}
	f.lastLogAt = now
	f.lastLogMsg = tr.Reason
	log.Infof("Filter blocked: stage=%s failed=%d reason=%s", tr.Stage, tr.FailedFilter, tr.Reason)
}
