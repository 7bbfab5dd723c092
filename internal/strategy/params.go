package strategy

import (
	"encoding/json"
	"fmt"
)

// MaxFibonacciPosition 斐波那契位置上限（再大 float64 注码就失去意义）
const MaxFibonacciPosition = 60

// Params 某个策略的配置参数
type Params interface {
	Kind() Kind
	Validate() error
}

// MartingaleParams 马丁格尔：输了翻倍，最多翻 MaxDoubles 次
type MartingaleParams struct {
	BaseBet    float64 `yaml:"base_bet" json:"base_bet"`
	Target     float64 `yaml:"target" json:"target"`
	MaxDoubles int     `yaml:"max_doubles" json:"max_doubles"`
}

func (MartingaleParams) Kind() Kind { return KindMartingale }

func (p MartingaleParams) Validate() error {
	if err := positive(KindMartingale, "base_bet", p.BaseBet); err != nil {
		return err
	}
	if err := multiplier(KindMartingale, "target", p.Target); err != nil {
		return err
	}
	return atLeastOne(KindMartingale, "max_doubles", p.MaxDoubles)
}

// AntiMartingaleParams 反马丁：赢了翻倍，连赢 MaxWins 次后回到底注
type AntiMartingaleParams struct {
	BaseBet float64 `yaml:"base_bet" json:"base_bet"`
	Target  float64 `yaml:"target" json:"target"`
	MaxWins int     `yaml:"max_wins" json:"max_wins"`
}

func (AntiMartingaleParams) Kind() Kind { return KindAntiMartingale }

func (p AntiMartingaleParams) Validate() error {
	if err := positive(KindAntiMartingale, "base_bet", p.BaseBet); err != nil {
		return err
	}
	if err := multiplier(KindAntiMartingale, "target", p.Target); err != nil {
		return err
	}
	return atLeastOne(KindAntiMartingale, "max_wins", p.MaxWins)
}

// FibonacciParams 斐波那契：输进一格，赢退两格
type FibonacciParams struct {
	BaseBet     float64 `yaml:"base_bet" json:"base_bet"`
	Target      float64 `yaml:"target" json:"target"`
	MaxPosition int     `yaml:"max_position" json:"max_position"`
}

func (FibonacciParams) Kind() Kind { return KindFibonacci }

func (p FibonacciParams) Validate() error {
	if err := positive(KindFibonacci, "base_bet", p.BaseBet); err != nil {
		return err
	}
	if err := multiplier(KindFibonacci, "target", p.Target); err != nil {
		return err
	}
	if err := atLeastOne(KindFibonacci, "max_position", p.MaxPosition); err != nil {
		return err
	}
	if p.MaxPosition > MaxFibonacciPosition {
		return invalidParam(KindFibonacci, "max_position", p.MaxPosition)
	}
	return nil
}

// DAlembertParams 达朗贝尔：输加一个增量，赢减一个增量（不低于 MinBet）
type DAlembertParams struct {
	BaseBet   float64 `yaml:"base_bet" json:"base_bet"`
	Increment float64 `yaml:"increment" json:"increment"`
	Target    float64 `yaml:"target" json:"target"`
	MinBet    float64 `yaml:"min_bet" json:"min_bet"`
}

func (DAlembertParams) Kind() Kind { return KindDAlembert }

func (p DAlembertParams) Validate() error {
	if err := positive(KindDAlembert, "base_bet", p.BaseBet); err != nil {
		return err
	}
	if err := positive(KindDAlembert, "increment", p.Increment); err != nil {
		return err
	}
	if err := multiplier(KindDAlembert, "target", p.Target); err != nil {
		return err
	}
	return positive(KindDAlembert, "min_bet", p.MinBet)
}

// ConservativeParams 保守：固定注码，可在两个目标之间交替
type ConservativeParams struct {
	Bet       float64 `yaml:"bet" json:"bet"`
	Target1   float64 `yaml:"target1" json:"target1"`
	Target2   float64 `yaml:"target2" json:"target2"`
	Alternate bool    `yaml:"alternate" json:"alternate"`
}

func (ConservativeParams) Kind() Kind { return KindConservative }

func (p ConservativeParams) Validate() error {
	if err := positive(KindConservative, "bet", p.Bet); err != nil {
		return err
	}
	if err := multiplier(KindConservative, "target1", p.Target1); err != nil {
		return err
	}
	return multiplier(KindConservative, "target2", p.Target2)
}

// HighRiskParams 资金百分比注码，带止损（百分比单位 0-100）
type HighRiskParams struct {
	Bankroll float64 `yaml:"bankroll" json:"bankroll"`
	Percent  float64 `yaml:"percent" json:"percent"`
	Target   float64 `yaml:"target" json:"target"`
	StopLoss float64 `yaml:"stop_loss" json:"stop_loss"`
}

func (HighRiskParams) Kind() Kind { return KindHighRisk }

func (p HighRiskParams) Validate() error {
	if err := positive(KindHighRisk, "bankroll", p.Bankroll); err != nil {
		return err
	}
	if err := percent(KindHighRisk, "percent", p.Percent); err != nil {
		return err
	}
	if err := multiplier(KindHighRisk, "target", p.Target); err != nil {
		return err
	}
	return percent(KindHighRisk, "stop_loss", p.StopLoss)
}

// DualParams 双注：同一局同时下两注，不做递进
type DualParams struct {
	Bet1    float64 `yaml:"bet1" json:"bet1"`
	Target1 float64 `yaml:"target1" json:"target1"`
	Bet2    float64 `yaml:"bet2" json:"bet2"`
	Target2 float64 `yaml:"target2" json:"target2"`
}

func (DualParams) Kind() Kind { return KindDual }

func (p DualParams) Validate() error {
	if err := positive(KindDual, "bet1", p.Bet1); err != nil {
		return err
	}
	if err := multiplier(KindDual, "target1", p.Target1); err != nil {
		return err
	}
	if err := positive(KindDual, "bet2", p.Bet2); err != nil {
		return err
	}
	return multiplier(KindDual, "target2", p.Target2)
}

// DefaultParams 各策略的出厂参数（与侧边栏默认值一致）
func DefaultParams(kind Kind) (Params, error) {
	switch kind {
	case KindMartingale:
		return MartingaleParams{BaseBet: 100, Target: 2.0, MaxDoubles: 5}, nil
	case KindAntiMartingale:
		return AntiMartingaleParams{BaseBet: 100, Target: 2.0, MaxWins: 3}, nil
	case KindFibonacci:
		return FibonacciParams{BaseBet: 100, Target: 2.0, MaxPosition: 8}, nil
	case KindDAlembert:
		return DAlembertParams{BaseBet: 100, Increment: 50, Target: 2.0, MinBet: 50}, nil
	case KindConservative:
		return ConservativeParams{Bet: 200, Target1: 1.5, Target2: 2.0, Alternate: true}, nil
	case KindHighRisk:
		return HighRiskParams{Bankroll: 5000, Percent: 5, Target: 10.0, StopLoss: 30}, nil
	case KindDual:
		return DualParams{Bet1: 150, Target1: 1.5, Bet2: 50, Target2: 8.0}, nil
	default:
		return nil, fmt.Errorf("no default params for %q", kind)
	}
}

// DecodeParams 按策略类型把 JSON 解码为对应参数结构（未校验）
func DecodeParams(kind Kind, data []byte) (Params, error) {
	var (
		p   Params
		err error
	)
	switch kind {
	case KindMartingale:
		var v MartingaleParams
		err = json.Unmarshal(data, &v)
		p = v
	case KindAntiMartingale:
		var v AntiMartingaleParams
		err = json.Unmarshal(data, &v)
		p = v
	case KindFibonacci:
		var v FibonacciParams
		err = json.Unmarshal(data, &v)
		p = v
	case KindDAlembert:
		var v DAlembertParams
		err = json.Unmarshal(data, &v)
		p = v
	case KindConservative:
		var v ConservativeParams
		err = json.Unmarshal(data, &v)
		p = v
	case KindHighRisk:
		var v HighRiskParams
		err = json.Unmarshal(data, &v)
		p = v
	case KindDual:
		var v DualParams
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidParameter, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s params: %v", ErrInvalidParameter, kind, err)
	}
	return p, nil
}

func positive(kind Kind, field string, v float64) error {
	if !(v > 0) {
		return invalidParam(kind, field, v)
	}
	return nil
}

// 倍数必须 >= 1.0
func multiplier(kind Kind, field string, v float64) error {
	if !(v >= 1.0) {
		return invalidParam(kind, field, v)
	}
	return nil
}

func percent(kind Kind, field string, v float64) error {
	if !(v > 0) || v > 100 {
		return invalidParam(kind, field, v)
	}
	return nil
}

func atLeastOne(kind Kind, field string, v int) error {
	if v < 1 {
		return invalidParam(kind, field, v)
	}
	return nil
}
