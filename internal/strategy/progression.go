package strategy

import "github.com/betbot/aviatorbot/internal/domain"

// progression 单个策略的可变递进状态。
// 实现只被 Engine 持有和调用，不做并发保护。
type progression interface {
	params() Params
	// next 计算下一局注码。除 conservative 外不得修改状态。
	next() BetInstruction
	// apply 根据刚结束一局的结果推进状态；返回非空字符串表示触发终止条件。
	apply(o domain.Outcome, pnlDelta float64) (stop string)
	view() StateView
}

// StateView 策略状态的只读快照（用于 API / dashboard）
type StateView struct {
	Kind            Kind    `json:"kind"`
	Params          Params  `json:"params"`
	CurrentBet      float64 `json:"current_bet"`
	LossStreak      int     `json:"loss_streak"`
	WinStreak       int     `json:"win_streak"`
	Position        int     `json:"position"`
	UseTarget1      bool    `json:"use_target1"`
	Bankroll        float64 `json:"bankroll"`
	InitialBankroll float64 `json:"initial_bankroll"`
	LossPercent     float64 `json:"loss_percent"`
}

func newProgression(p Params) progression {
	switch v := p.(type) {
	case MartingaleParams:
		return newMartingale(v)
	case AntiMartingaleParams:
		return newAntiMartingale(v)
	case FibonacciParams:
		return newFibonacci(v)
	case DAlembertParams:
		return newDAlembert(v)
	case ConservativeParams:
		return newConservative(v)
	case HighRiskParams:
		return newHighRisk(v)
	case DualParams:
		return newDual(v)
	}
	return nil
}

// clampAmount 注码 <= 0 时回落到 floor
func clampAmount(amount, floor float64) float64 {
	if amount <= 0 {
		return floor
	}
	return amount
}
