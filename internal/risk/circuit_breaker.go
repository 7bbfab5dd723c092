package risk

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "risk")

// ErrCircuitBreakerOpen 表示断路器已打开，禁止继续下注。
var ErrCircuitBreakerOpen = errors.New("circuit breaker open")

// 熔断原因
const (
	ReasonManual      = "manual"
	ReasonClickErrors = "consecutive click errors"
	ReasonSessionLoss = "session loss limit"
	ReasonTakeProfit  = "take profit reached"
)

// CircuitBreakerConfig 断路器配置。
// 约定：阈值 <= 0 表示关闭对应限制。
type CircuitBreakerConfig struct {
	// MaxConsecutiveErrors 连续点击失败上限
	MaxConsecutiveErrors int64
	// MaxSessionLoss 本 session 最大亏损（金额）。达到或超过时立即熔断。
	MaxSessionLoss float64
	// TakeProfit 本 session 盈利目标，达到后停止下注
	TakeProfit float64
}

// CircuitBreaker 快路径使用原子变量；PnL 以“分”为单位累计，避免浮点误差。
type CircuitBreaker struct {
	halted atomic.Bool

	consecutiveErrors atomic.Int64
	sessionPnlCents   atomic.Int64

	maxConsecutiveErrors atomic.Int64
	maxLossCents         atomic.Int64
	takeProfitCents      atomic.Int64

	reasonMu sync.Mutex
	reason   string
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.SetConfig(cfg)
	return cb
}

func (cb *CircuitBreaker) SetConfig(cfg CircuitBreakerConfig) {
	if cb == nil {
		return
	}
	cb.maxConsecutiveErrors.Store(cfg.MaxConsecutiveErrors)
	cb.maxLossCents.Store(toCents(cfg.MaxSessionLoss))
	cb.takeProfitCents.Store(toCents(cfg.TakeProfit))
}

// Halt 手动熔断（如人工介入或检测到严重异常）。
func (cb *CircuitBreaker) Halt() {
	if cb == nil {
		return
	}
	cb.trip(ReasonManual)
}

// Resume 手动恢复（会同时清空连续错误计数，PnL 不清零）。
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.consecutiveErrors.Store(0)
	cb.setReason("")
	log.Infof("断路器已恢复")
}

// ResetSession 新 session：清空 PnL 和错误计数并恢复
func (cb *CircuitBreaker) ResetSession() {
	if cb == nil {
		return
	}
	cb.sessionPnlCents.Store(0)
	cb.Resume()
}

// AllowTrading 快路径检查是否允许下注。
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}
	if cb.halted.Load() {
		return cb.openErr()
	}

	if maxErr := cb.maxConsecutiveErrors.Load(); maxErr > 0 && cb.consecutiveErrors.Load() >= maxErr {
		cb.trip(ReasonClickErrors)
		return cb.openErr()
	}

	pnl := cb.sessionPnlCents.Load()
	if limit := cb.maxLossCents.Load(); limit > 0 && pnl <= -limit {
		cb.trip(ReasonSessionLoss)
		return cb.openErr()
	}
	if tp := cb.takeProfitCents.Load(); tp > 0 && pnl >= tp {
		cb.trip(ReasonTakeProfit)
		return cb.openErr()
	}
	return nil
}

// Halted 是否处于熔断状态及原因
func (cb *CircuitBreaker) Halted() (bool, string) {
	if cb == nil {
		return false, ""
	}
	cb.reasonMu.Lock()
	defer cb.reasonMu.Unlock()
	return cb.halted.Load(), cb.reason
}

// OnSuccess 点击成功后调用，清空连续错误计数。
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Store(0)
}

// OnError 点击失败后调用。
func (cb *CircuitBreaker) OnError() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Add(1)
}

// AddPnL 增量更新 session PnL；负数表示亏损。
func (cb *CircuitBreaker) AddPnL(delta float64) {
	if cb == nil {
		return
	}
	cb.sessionPnlCents.Add(toCents(delta))
}

// SessionPnL 当前 session PnL
func (cb *CircuitBreaker) SessionPnL() float64 {
	if cb == nil {
		return 0
	}
	return decimal.New(cb.sessionPnlCents.Load(), -2).InexactFloat64()
}

func (cb *CircuitBreaker) trip(reason string) {
	if cb.halted.Swap(true) {
		return
	}
	cb.setReason(reason)
	log.Warnf("断路器熔断: %s (pnl=%.2f errors=%d)", reason, cb.SessionPnL(), cb.consecutiveErrors.Load())
}

func (cb *CircuitBreaker) setReason(r string) {
	cb.reasonMu.Lock()
	cb.reason = r
	cb.reasonMu.Unlock()
}

func (cb *CircuitBreaker) openErr() error {
	_, reason := cb.Halted()
	return fmt.Errorf("%w: %s", ErrCircuitBreakerOpen, reason)
}

func toCents(v float64) int64 {
	return decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
}
