package strategy

import (
	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/shopspring/decimal"
)

type fibonacci struct {
	cfg      FibonacciParams
	sequence []float64
	position int
}

func newFibonacci(p FibonacciParams) *fibonacci {
	return &fibonacci{cfg: p, sequence: fibonacciSequence(p.MaxPosition + 1)}
}

// fibonacciSequence 生成 1,1,2,3,5,8... 的前 n 项（至少 2 项）
func fibonacciSequence(n int) []float64 {
	if n < 2 {
		n = 2
	}
	seq := make([]float64, n)
	seq[0], seq[1] = 1, 1
	for i := 2; i < n; i++ {
		seq[i] = seq[i-1] + seq[i-2]
	}
	return seq
}

func (f *fibonacci) params() Params { return f.cfg }

func (f *fibonacci) next() BetInstruction {
	amount := f.cfg.BaseBet * f.sequence[f.position]
	return BetInstruction{
		Kind:    KindFibonacci,
		Primary: Bet{Amount: clampAmount(amount, f.cfg.BaseBet), Target: f.cfg.Target},
	}
}

func (f *fibonacci) apply(o domain.Outcome, _ float64) string {
	switch o {
	case domain.OutcomeLoss:
		f.position = min(f.position+1, f.cfg.MaxPosition)
	case domain.OutcomeWin:
		f.position = max(0, f.position-2)
	}
	return ""
}

func (f *fibonacci) view() StateView {
	return StateView{
		Kind:       KindFibonacci,
		Params:     f.cfg,
		CurrentBet: f.cfg.BaseBet * f.sequence[f.position],
		Position:   f.position,
	}
}

// dalembert 的注码用 decimal 累加，避免多次加减 Increment 后出现 0.30000000000000004 这类误差
type dalembert struct {
	cfg        DAlembertParams
	currentBet decimal.Decimal
}

func newDAlembert(p DAlembertParams) *dalembert {
	return &dalembert{cfg: p, currentBet: decimal.NewFromFloat(p.BaseBet)}
}

func (d *dalembert) params() Params { return d.cfg }

func (d *dalembert) next() BetInstruction {
	return BetInstruction{
		Kind:    KindDAlembert,
		Primary: Bet{Amount: clampAmount(d.currentBet.InexactFloat64(), d.cfg.MinBet), Target: d.cfg.Target},
	}
}

func (d *dalembert) apply(o domain.Outcome, _ float64) string {
	switch o {
	case domain.OutcomeLoss:
		d.currentBet = d.currentBet.Add(decimal.NewFromFloat(d.cfg.Increment))
	case domain.OutcomeWin:
		d.currentBet = decimal.Max(decimal.NewFromFloat(d.cfg.MinBet),
			d.currentBet.Sub(decimal.NewFromFloat(d.cfg.Increment)))
	}
	return ""
}

func (d *dalembert) view() StateView {
	return StateView{Kind: KindDAlembert, Params: d.cfg, CurrentBet: d.currentBet.InexactFloat64()}
}
