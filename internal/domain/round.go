package domain

import (
	"fmt"
	"strings"
	"time"
)

// Outcome 一局的结果（相对于本局下注的目标倍数）
type Outcome string

const (
	OutcomeNone Outcome = "none" // 本局没有下注
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// ParseOutcome 解析结果字符串，兼容旧库中的 ganada/perdida
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null":
		return OutcomeNone, nil
	case "win", "ganada":
		return OutcomeWin, nil
	case "loss", "perdida":
		return OutcomeLoss, nil
	default:
		return OutcomeNone, fmt.Errorf("unknown outcome %q", s)
	}
}

// Resolve 根据本局倍数和下注目标判断输赢：倍数 >= 目标即为赢
func Resolve(multiplier, target float64) Outcome {
	if multiplier >= target {
		return OutcomeWin
	}
	return OutcomeLoss
}

// RoundOutcome 一局观测记录（记录后不可变）
type RoundOutcome struct {
	Multiplier float64   `json:"multiplier"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    Outcome   `json:"outcome"`
}

// History 最近的局记录，按时间倒序（index 0 为最新一局）
type History []RoundOutcome

// Multipliers 返回最近 n 局的倍数（不足 n 局时返回全部）
func (h History) Multipliers(n int) []float64 {
	if n > len(h) || n < 0 {
		n = len(h)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = h[i].Multiplier
	}
	return out
}
