package strategy

import "github.com/betbot/aviatorbot/internal/domain"

type martingale struct {
	cfg        MartingaleParams
	currentBet float64
	lossStreak int
}

func newMartingale(p MartingaleParams) *martingale {
	return &martingale{cfg: p, currentBet: p.BaseBet}
}

func (m *martingale) params() Params { return m.cfg }

func (m *martingale) next() BetInstruction {
	return BetInstruction{
		Kind:    KindMartingale,
		Primary: Bet{Amount: clampAmount(m.currentBet, m.cfg.BaseBet), Target: m.cfg.Target},
	}
}

func (m *martingale) apply(o domain.Outcome, _ float64) string {
	switch o {
	case domain.OutcomeLoss:
		m.lossStreak++
		// 超过 MaxDoubles 后保持当前注码，不再翻倍
		if m.lossStreak <= m.cfg.MaxDoubles {
			m.currentBet *= 2
		}
	case domain.OutcomeWin:
		m.lossStreak = 0
		m.currentBet = m.cfg.BaseBet
	}
	return ""
}

func (m *martingale) view() StateView {
	return StateView{
		Kind:       KindMartingale,
		Params:     m.cfg,
		CurrentBet: m.currentBet,
		LossStreak: m.lossStreak,
	}
}

type antiMartingale struct {
	cfg        AntiMartingaleParams
	currentBet float64
	winStreak  int
}

func newAntiMartingale(p AntiMartingaleParams) *antiMartingale {
	return &antiMartingale{cfg: p, currentBet: p.BaseBet}
}

func (a *antiMartingale) params() Params { return a.cfg }

func (a *antiMartingale) next() BetInstruction {
	return BetInstruction{
		Kind:    KindAntiMartingale,
		Primary: Bet{Amount: clampAmount(a.currentBet, a.cfg.BaseBet), Target: a.cfg.Target},
	}
}

func (a *antiMartingale) apply(o domain.Outcome, _ float64) string {
	switch o {
	case domain.OutcomeWin:
		a.winStreak++
		if a.winStreak < a.cfg.MaxWins {
			a.currentBet *= 2
		} else {
			// 连赢达到上限：锁定利润，回到底注
			a.winStreak = 0
			a.currentBet = a.cfg.BaseBet
		}
	case domain.OutcomeLoss:
		a.winStreak = 0
		a.currentBet = a.cfg.BaseBet
	}
	return ""
}

func (a *antiMartingale) view() StateView {
	return StateView{
		Kind:       KindAntiMartingale,
		Params:     a.cfg,
		CurrentBet: a.currentBet,
		WinStreak:  a.winStreak,
	}
}
