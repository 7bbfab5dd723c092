package strategy

import (
	"fmt"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/shopspring/decimal"
)

// conservative 固定注码。目标交替发生在每次 next() 调用上，与输赢无关，
// 因此调用方必须每局只调用一次 NextStake。
type conservative struct {
	cfg        ConservativeParams
	useTarget1 bool
}

func newConservative(p ConservativeParams) *conservative {
	return &conservative{cfg: p, useTarget1: true}
}

func (c *conservative) params() Params { return c.cfg }

func (c *conservative) next() BetInstruction {
	target := c.cfg.Target1
	if c.cfg.Alternate {
		if !c.useTarget1 {
			target = c.cfg.Target2
		}
		c.useTarget1 = !c.useTarget1
	}
	return BetInstruction{Kind: KindConservative, Primary: Bet{Amount: c.cfg.Bet, Target: target}}
}

// cancel 撤销最近一次 next() 的目标交替（下注点击失败时调用）
func (c *conservative) cancel() {
	if c.cfg.Alternate {
		c.useTarget1 = !c.useTarget1
	}
}

func (c *conservative) apply(domain.Outcome, float64) string { return "" }

func (c *conservative) view() StateView {
	return StateView{
		Kind:       KindConservative,
		Params:     c.cfg,
		CurrentBet: c.cfg.Bet,
		UseTarget1: c.useTarget1,
	}
}

// highRisk 资金百分比注码。bankroll 由 apply 的 pnlDelta 或 Engine.SetBankroll 更新，
// 亏损比例达到 StopLoss 时触发终止。
type highRisk struct {
	cfg      HighRiskParams
	bankroll decimal.Decimal
}

func newHighRisk(p HighRiskParams) *highRisk {
	return &highRisk{cfg: p, bankroll: decimal.NewFromFloat(p.Bankroll)}
}

func (h *highRisk) params() Params { return h.cfg }

func (h *highRisk) current() float64 { return h.bankroll.InexactFloat64() }

func (h *highRisk) lossPercent() float64 {
	return (h.cfg.Bankroll - h.current()) * 100 / h.cfg.Bankroll
}

func (h *highRisk) next() BetInstruction {
	amount := h.current() * h.cfg.Percent / 100
	floor := h.cfg.Bankroll * h.cfg.Percent / 100
	return BetInstruction{
		Kind:    KindHighRisk,
		Primary: Bet{Amount: clampAmount(amount, floor), Target: h.cfg.Target},
	}
}

func (h *highRisk) apply(_ domain.Outcome, pnlDelta float64) string {
	return h.updateBankroll(h.bankroll.Add(decimal.NewFromFloat(pnlDelta)))
}

func (h *highRisk) setBankroll(v float64) string {
	return h.updateBankroll(decimal.NewFromFloat(v))
}

func (h *highRisk) updateBankroll(v decimal.Decimal) string {
	h.bankroll = decimal.Max(decimal.Zero, v)
	if lp := h.lossPercent(); lp >= h.cfg.StopLoss {
		return fmt.Sprintf("stop loss reached: lost %.2f%% >= %.2f%%", lp, h.cfg.StopLoss)
	}
	return ""
}

func (h *highRisk) view() StateView {
	return StateView{
		Kind:            KindHighRisk,
		Params:          h.cfg,
		CurrentBet:      h.current() * h.cfg.Percent / 100,
		Bankroll:        h.current(),
		InitialBankroll: h.cfg.Bankroll,
		LossPercent:     h.lossPercent(),
	}
}

type dual struct {
	cfg DualParams
}

func newDual(p DualParams) *dual { return &dual{cfg: p} }

func (d *dual) params() Params { return d.cfg }

func (d *dual) next() BetInstruction {
	return BetInstruction{
		Kind:      KindDual,
		Primary:   Bet{Amount: d.cfg.Bet1, Target: d.cfg.Target1},
		Secondary: &Bet{Amount: d.cfg.Bet2, Target: d.cfg.Target2},
	}
}

func (d *dual) apply(domain.Outcome, float64) string { return "" }

func (d *dual) view() StateView {
	return StateView{Kind: KindDual, Params: d.cfg, CurrentBet: d.cfg.Bet1 + d.cfg.Bet2}
}
