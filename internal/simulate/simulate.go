// Package simulate 在一段倍数序列上回测注码策略 + 过滤器。
package simulate

import (
	"fmt"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/ledger"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "simulate")

// 停止原因
const (
	StopEndOfData  = "end of data"
	StopTakeProfit = "take profit"
	StopLoss       = "stop loss"
	StopMaxBets    = "max bets"
	StopStrategy   = "strategy stopped"
)

// roundInterval 合成时间戳的间隔（冷却扩展按局数计算，只需要时间有序）
const roundInterval = 10 * time.Second

// Config 回测配置；阈值 <= 0 表示不限制
type Config struct {
	Params          strategy.Params
	StartingBalance float64
	TakeProfit      float64
	StopLoss        float64
	MaxBets         int
	// SkipFilter 为 true 时每局都下注（对照组）
	SkipFilter bool
	Cooldown   *gates.CooldownStage
}

// Result 回测结果
type Result struct {
	Strategy   strategy.Kind      `json:"strategy"`
	Rounds     int                `json:"rounds"`
	Signals    int                `json:"signals"`
	StopReason string             `json:"stop_reason"`
	Summary    ledger.Summary     `json:"summary"`
	FinalState strategy.StateView `json:"final_state"`
	BlockedBy  map[string]int     `json:"blocked_by"`
}

// Run 按时间正序回放 series。每局开始前用已知历史评估过滤器，通过则按策略下注，再用本局倍数结算。
func Run(series []float64, cfg Config) (Result, error) {
	if cfg.Params == nil {
		return Result{}, fmt.Errorf("%w: params missing", strategy.ErrInvalidParameter)
	}
	kind := cfg.Params.Kind()
	eng := strategy.NewEngine()
	if err := eng.Configure(kind, cfg.Params); err != nil {
		return Result{}, err
	}
	if err := eng.Activate(kind); err != nil {
		return Result{}, err
	}

	led := ledger.New(cfg.StartingBalance)
	hist := domain.NewHistoryBuffer(domain.DefaultHistoryCapacity)
	res := Result{Strategy: kind, StopReason: StopEndOfData, BlockedBy: make(map[string]int)}
	t0 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	var lastWin, lastLoss time.Time

	for i, m := range series {
		now := t0.Add(time.Duration(i) * roundInterval)
		approved := cfg.SkipFilter || evaluate(hist.Snapshot(), now, lastWin, lastLoss, cfg.Cooldown, res.BlockedBy)
		outcome := domain.OutcomeNone

		if approved {
			res.Signals++
			ins, err := eng.NextStake()
			if err != nil {
				return res, err
			}
			if ins != nil {
				pnl := 0.0
				for _, leg := range ins.Legs() {
					pnl += led.Settle(leg.Amount, leg.Target, m).PnL
				}
				outcome = domain.OutcomeLoss
				if pnl > 0 {
					outcome = domain.OutcomeWin
				}
				if !ins.IsDual() {
					outcome = domain.Resolve(m, ins.Primary.Target)
				}
				if err := eng.ApplyOutcome(outcome, pnl); err != nil {
					return res, err
				}
				if outcome == domain.OutcomeWin {
					lastWin = now
				} else {
					lastLoss = now
				}
			}
		}

		hist.Push(domain.RoundOutcome{Multiplier: m, Timestamp: now, Outcome: outcome})
		res.Rounds = i + 1

		if reason := stopReason(cfg, led.Summary(), eng); reason != "" {
			res.StopReason = reason
			break
		}
	}

	res.Summary = led.Summary()
	st := eng.Status()
	res.FinalState = st.States[kind]
	log.Infof("回测结束: %s rounds=%d bets=%d pnl=%.2f reason=%s",
		kind, res.Rounds, res.Summary.Bets, res.Summary.PnL, res.StopReason)
	return res, nil
}

func evaluate(h domain.History, now, lastWin, lastLoss time.Time, cd *gates.CooldownStage, blocked map[string]int) bool {
	ok, tr := gates.Evaluate(h, 0)
	if !ok {
		if tr.FailedFilter > 0 {
			blocked[gates.FilterOrder[tr.FailedFilter-1]]++
		} else {
			blocked[tr.Stage]++
		}
		return false
	}
	if cd != nil {
		if pass, _ := cd.Evaluate(h, now, lastWin, lastLoss); !pass {
			blocked[gates.StageCooldown]++
			return false
		}
	}
	return true
}

func stopReason(cfg Config, s ledger.Summary, eng *strategy.Engine) string {
	switch {
	case cfg.TakeProfit > 0 && s.PnL >= cfg.TakeProfit:
		return StopTakeProfit
	case cfg.StopLoss > 0 && s.PnL <= -cfg.StopLoss:
		return StopLoss
	case cfg.MaxBets > 0 && s.Bets >= cfg.MaxBets:
		return StopMaxBets
	case eng.LastStop() != nil:
		return StopStrategy
	}
	return ""
}
