package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/simulate"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/pkg/config"
	"github.com/betbot/aviatorbot/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "配置文件路径（读取策略参数和冷却扩展）")
		csvPath    = flag.String("csv", "", "倍数序列 CSV；为空时生成合成数据")
		rounds     = flag.Int("n", 1000, "合成数据局数")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "合成数据随机种子")
		kindName   = flag.String("strategy", "martingale", "策略")
		balance    = flag.Float64("balance", 1000, "初始资金")
		takeProfit = flag.Float64("take-profit", 0, "盈利目标（0 不限制）")
		stopLoss   = flag.Float64("stop-loss", 0, "最大亏损（0 不限制）")
		maxBets    = flag.Int("max-bets", 0, "最多下注次数（0 不限制）")
		noFilter   = flag.Bool("no-filter", false, "不使用过滤器，每局都下注")
		asJSON     = flag.Bool("json", false, "以 JSON 输出结果")
	)
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}
	kind, err := strategy.ParseKind(*kindName)
	if err != nil || kind == strategy.KindNone {
		logrus.Fatalf("无效的策略: %q", *kindName)
	}

	var series []float64
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			logrus.Fatalf("打开 CSV 失败: %v", err)
		}
		series, err = simulate.LoadCSV(f)
		f.Close()
		if err != nil {
			logrus.Fatalf("读取 CSV 失败: %v", err)
		}
	} else {
		series = simulate.Synthetic(rand.New(rand.NewPCG(*seed, *seed^0x5DEECE66D)), *rounds)
	}

	simCfg := simulate.Config{
		Params:          cfg.Strategies.ParamsWithDefaults()[kind],
		StartingBalance: *balance,
		TakeProfit:      *takeProfit,
		StopLoss:        *stopLoss,
		MaxBets:         *maxBets,
		SkipFilter:      *noFilter,
	}
	if cfg.Filter.CooldownEnabled {
		simCfg.Cooldown = gates.NewCooldownStage(cfg.Filter.Cooldown)
	}

	res, err := simulate.Run(series, simCfg)
	if err != nil {
		logrus.Fatalf("回测失败: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	s := res.Summary
	fmt.Printf("策略        %s\n", res.Strategy)
	fmt.Printf("局数        %d（信号 %d）\n", res.Rounds, res.Signals)
	fmt.Printf("停止原因    %s\n", res.StopReason)
	fmt.Printf("下注        %d  赢 %d  输 %d  胜率 %.2f%%\n", s.Bets, s.Wins, s.Losses, s.WinRate)
	fmt.Printf("资金        %.2f -> %.2f  盈亏 %.2f  ROI %.2f%%  最大回撤 %.2f\n",
		s.Starting, s.Balance, s.PnL, s.ROI, s.MaxDrawdown)
	for name, n := range res.BlockedBy {
		fmt.Printf("拦截 %-12s %d\n", name, n)
	}
}
