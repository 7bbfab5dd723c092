// Package store 定义持久化协作方的接口。两个实现：sqlitestore（默认）和 badgerstore。
// 内存中的引擎状态才是运行期的事实来源，存储只用于快照和重启恢复。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
)

// ErrClosed 存储已关闭
var ErrClosed = errors.New("store: closed")

// 点击类型
const (
	ClickBet    = "bet"    // 真实下注
	ClickFake   = "fake"   // anti-AFK：下注后立即取消
	ClickReload = "reload" // watchdog 刷新页面
	ClickManual = "manual" // 控制面手动触发
)

// 配置键
const (
	KeyActiveStrategy = "strategy.active"
	KeySession        = "session.current"
	KeySniperArmed    = "sniper.armed"
	KeyAntiAFK        = "anti_afk.enabled"
	KeyBankroll       = "strategy.high_risk.bankroll"
	KeyLastStop       = "strategy.last_stop"

	paramsKeyPrefix      = "strategy.params."
	calibrationKeyPrefix = "calibration."
)

// ParamsKey 某个策略参数的存储键
func ParamsKey(kind string) string { return paramsKeyPrefix + kind }

// CalibrationKey 某个点击目标校准点的存储键
func CalibrationKey(target string) string { return calibrationKeyPrefix + target }

// RoundRecord 一局的持久化记录
type RoundRecord struct {
	ID         int64          `json:"id"`
	SessionID  int64          `json:"session_id"`
	Multiplier float64        `json:"multiplier"`
	Timestamp  time.Time      `json:"timestamp"`
	ClickType  string         `json:"click_type,omitempty"` // 本局是否有点击；空表示没有
	Result     domain.Outcome `json:"result"`
	TargetUsed float64        `json:"target_used"`
}

// Outcome 转换为过滤器使用的历史条目。
// Result 总是相对 TargetUsed 记录；只有真实下注的局才带输赢。
func (r RoundRecord) Outcome() domain.RoundOutcome {
	o := domain.RoundOutcome{Multiplier: r.Multiplier, Timestamp: r.Timestamp, Outcome: domain.OutcomeNone}
	if r.ClickType == ClickBet {
		o.Outcome = r.Result
	}
	return o
}

// ClickRecord 一次点击命令的执行结果
type ClickRecord struct {
	ID        int64     `json:"id"`
	CommandID string    `json:"command_id"`
	SessionID int64     `json:"session_id"`
	ClickType string    `json:"click_type"`
	Target    string    `json:"target"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Counters 某个 session 的统计
type Counters struct {
	SessionID   int64 `json:"session_id"`
	Rounds      int   `json:"rounds"`
	Wins        int   `json:"wins"`
	Losses      int   `json:"losses"`
	ClickBet    int   `json:"click_bet"`
	ClickFake   int   `json:"click_fake"`
	ClickReload int   `json:"click_reload"`
	ClickErrors int   `json:"click_errors"`
}

// Store 持久化协作方
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// AppendRound 追加一局；实现只保留最近 N 局
	AppendRound(ctx context.Context, r RoundRecord) (int64, error)
	// RecentRounds 返回最近 n 局，按时间倒序
	RecentRounds(ctx context.Context, n int) ([]RoundRecord, error)
	AppendClick(ctx context.Context, c ClickRecord) error
	Counters(ctx context.Context, session int64) (Counters, error)
	Close() error
}

// AddRound 累计一局；只有真实下注的局计入输赢
func (c *Counters) AddRound(r RoundRecord) {
	c.Rounds++
	if r.ClickType != ClickBet {
		return
	}
	switch r.Result {
	case domain.OutcomeWin:
		c.Wins++
	case domain.OutcomeLoss:
		c.Losses++
	}
}

// AddClick 累计一次点击
func (c *Counters) AddClick(rec ClickRecord) {
	if !rec.Success {
		c.ClickErrors++
		return
	}
	switch rec.ClickType {
	case ClickBet:
		c.ClickBet++
	case ClickFake:
		c.ClickFake++
	case ClickReload:
		c.ClickReload++
	}
}
