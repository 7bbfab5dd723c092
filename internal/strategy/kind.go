package strategy

import (
	"fmt"
	"strings"
)

// Kind 注码策略类型（封闭枚举）
type Kind string

const (
	KindNone           Kind = "none"
	KindMartingale     Kind = "martingale"
	KindAntiMartingale Kind = "anti_martingale"
	KindFibonacci      Kind = "fibonacci"
	KindDAlembert      Kind = "dalembert"
	KindConservative   Kind = "conservative"
	KindHighRisk       Kind = "high_risk"
	KindDual           Kind = "dual"
)

// Kinds 所有可配置的策略（不含 none），顺序即界面展示顺序
var Kinds = []Kind{
	KindMartingale,
	KindAntiMartingale,
	KindFibonacci,
	KindDAlembert,
	KindConservative,
	KindHighRisk,
	KindDual,
}

// ParseKind 解析策略名；空字符串视为 none
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" || k == KindNone {
		return KindNone, nil
	}
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown strategy kind %q", s)
}

func (k Kind) String() string { return string(k) }
