package strategy

import "fmt"

// Bet 单注：金额 + 目标倍数
type Bet struct {
	Amount float64 `json:"amount"`
	Target float64 `json:"target"`
}

// BetInstruction 一局的下注指令。Secondary 非空时为双注，两注同时下。
type BetInstruction struct {
	Kind      Kind `json:"kind"`
	Primary   Bet  `json:"primary"`
	Secondary *Bet `json:"secondary,omitempty"`
}

// IsDual 是否为双注
func (b BetInstruction) IsDual() bool { return b.Secondary != nil }

// Legs 返回所有注（单注 1 个，双注 2 个）
func (b BetInstruction) Legs() []Bet {
	if b.Secondary == nil {
		return []Bet{b.Primary}
	}
	return []Bet{b.Primary, *b.Secondary}
}

// Total 本局总投入
func (b BetInstruction) Total() float64 {
	total := 0.0
	for _, l := range b.Legs() {
		total += l.Amount
	}
	return total
}

func (b BetInstruction) String() string {
	if b.Secondary == nil {
		return fmt.Sprintf("%s %.2f@%.2fx", b.Kind, b.Primary.Amount, b.Primary.Target)
	}
	return fmt.Sprintf("%s %.2f@%.2fx + %.2f@%.2fx", b.Kind,
		b.Primary.Amount, b.Primary.Target, b.Secondary.Amount, b.Secondary.Target)
}
