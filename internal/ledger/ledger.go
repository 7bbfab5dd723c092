// Package ledger 会话记账：余额、投入、回收、胜率、ROI。
// 金额用 decimal 累计，对外以 float64 输出。
package ledger

import (
	"sync"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Settlement 一注的结算结果
type Settlement struct {
	Outcome  domain.Outcome `json:"outcome"`
	Amount   float64        `json:"amount"`
	Target   float64        `json:"target"`
	Returned float64        `json:"returned"`
	PnL      float64        `json:"pnl"`
}

// Summary 会话汇总
type Summary struct {
	Starting    float64 `json:"starting"`
	Balance     float64 `json:"balance"`
	Invested    float64 `json:"invested"`
	Returned    float64 `json:"returned"`
	PnL         float64 `json:"pnl"`
	Bets        int     `json:"bets"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // 百分比
	ROI         float64 `json:"roi"`      // 百分比，相对总投入
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Ledger 并发安全
type Ledger struct {
	mu sync.Mutex

	starting decimal.Decimal
	balance  decimal.Decimal
	invested decimal.Decimal
	returned decimal.Decimal
	peak     decimal.Decimal
	drawdown decimal.Decimal

	bets, wins, losses int
}

func New(starting float64) *Ledger {
	l := &Ledger{}
	l.Reset(starting)
	return l
}

// Reset 新 session 从 starting 重新记账
func (l *Ledger) Reset(starting float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := decimal.NewFromFloat(starting)
	l.starting = s
	l.balance = s
	l.peak = s
	l.invested = decimal.Zero
	l.returned = decimal.Zero
	l.drawdown = decimal.Zero
	l.bets, l.wins, l.losses = 0, 0, 0
}

// Settle 按本局倍数结算一注：倍数 >= 目标为赢，回收 amount*target；否则损失 amount。
func (l *Ledger) Settle(amount, target, multiplier float64) Settlement {
	a := decimal.NewFromFloat(amount)
	outcome := domain.Resolve(multiplier, target)
	ret := decimal.Zero
	if outcome == domain.OutcomeWin {
		ret = a.Mul(decimal.NewFromFloat(target))
	}
	pnl := ret.Sub(a)

	l.mu.Lock()
	l.bets++
	if outcome == domain.OutcomeWin {
		l.wins++
	} else {
		l.losses++
	}
	l.invested = l.invested.Add(a)
	l.returned = l.returned.Add(ret)
	l.balance = l.balance.Add(pnl)
	if l.balance.GreaterThan(l.peak) {
		l.peak = l.balance
	}
	if dd := l.peak.Sub(l.balance); dd.GreaterThan(l.drawdown) {
		l.drawdown = dd
	}
	l.mu.Unlock()

	return Settlement{
		Outcome:  outcome,
		Amount:   amount,
		Target:   target,
		Returned: ret.Round(2).InexactFloat64(),
		PnL:      pnl.Round(2).InexactFloat64(),
	}
}

// Balance 当前余额
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance.InexactFloat64()
}

// Summary 当前汇总
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	pnl := l.balance.Sub(l.starting)
	s := Summary{
		Starting:    l.starting.InexactFloat64(),
		Balance:     l.balance.Round(2).InexactFloat64(),
		Invested:    l.invested.Round(2).InexactFloat64(),
		Returned:    l.returned.Round(2).InexactFloat64(),
		PnL:         pnl.Round(2).InexactFloat64(),
		Bets:        l.bets,
		Wins:        l.wins,
		Losses:      l.losses,
		MaxDrawdown: l.drawdown.Round(2).InexactFloat64(),
	}
	if l.bets > 0 {
		s.WinRate = decimal.NewFromInt(int64(l.wins)).Mul(hundred).
			Div(decimal.NewFromInt(int64(l.bets))).Round(2).InexactFloat64()
	}
	if l.invested.IsPositive() {
		s.ROI = pnl.Mul(hundred).Div(l.invested).Round(2).InexactFloat64()
	}
	return s
}
