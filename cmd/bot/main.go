package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/controlplane"
	"github.com/betbot/aviatorbot/internal/dashboard"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/ledger"
	"github.com/betbot/aviatorbot/internal/metrics"
	"github.com/betbot/aviatorbot/internal/ocr"
	"github.com/betbot/aviatorbot/internal/risk"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/store/badgerstore"
	"github.com/betbot/aviatorbot/internal/store/sqlitestore"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/internal/tracker"
	"github.com/betbot/aviatorbot/pkg/config"
	"github.com/betbot/aviatorbot/pkg/logger"
	"github.com/betbot/aviatorbot/pkg/shutdown"
	"github.com/betbot/aviatorbot/pkg/syncgroup"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）；指定后会监听文件变更")
	ocrSource := flag.String("ocr", "", "OCR 读数来源，覆盖配置：- 表示 stdin，否则为文件/命名管道")
	dryRun := flag.Bool("dry-run", false, "只记录点击，不调用点击服务")
	flag.Parse()

	var (
		cfg     *config.Config
		watcher *config.Watcher
		err     error
	)
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath)
		if err == nil {
			cfg, _ = watcher.Current()
		}
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *ocrSource != "" {
		cfg.OCR.Source = *ocrSource
	}
	if *dryRun {
		cfg.Clicker.Mode = "dryrun"
	}

	// 看板占用终端时日志只写文件
	useDashboard := cfg.Dashboard.Enabled && term.IsTerminal(int(os.Stdout.Fd()))
	if useDashboard {
		cfg.Log.Quiet = true
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	st, err := openStore(cfg.Store)
	if err != nil {
		logrus.Errorf("打开存储失败: %v", err)
		os.Exit(1)
	}
	shutdowns := shutdown.NewManager()
	shutdowns.Finally("store", func(context.Context) error { return st.Close() })

	calib, err := clicker.LoadCalibration(rootCtx, st, cfg.Clicker.BetTarget, cfg.Clicker.SecondTarget)
	if err != nil {
		logrus.Warnf("加载点击校准失败，使用按钮编号点击: %v", err)
		calib = clicker.NewCalibration()
	}
	exec := clicker.NewPaced(newExecutor(cfg.Clicker, calib), cfg.Clicker.MinInterval)

	engine := strategy.NewEngine()
	for kind, p := range cfg.Strategies.ParamsWithDefaults() {
		if err := engine.Configure(kind, p); err != nil {
			logrus.Errorf("配置策略 %s 失败: %v", kind, err)
			os.Exit(1)
		}
	}
	if active, _ := strategy.ParseKind(cfg.Strategies.Active); active != strategy.KindNone {
		if err := engine.Activate(active); err != nil {
			logrus.Errorf("激活策略 %s 失败: %v", active, err)
			os.Exit(1)
		}
	}

	var cooldown *gates.CooldownStage
	if cfg.Filter.CooldownEnabled {
		cooldown = gates.NewCooldownStage(cfg.Filter.Cooldown)
	}
	antiAFK := tracker.DefaultAntiAFK()
	antiAFK.Enabled = cfg.AntiAFK.Enabled
	antiAFK.MinRounds = cfg.AntiAFK.MinRounds
	antiAFK.MaxRounds = cfg.AntiAFK.MaxRounds

	tr := tracker.New(tracker.Options{
		Engine:          engine,
		Filter:          gates.New(cooldown),
		Store:           st,
		Executor:        exec,
		Breaker:         risk.NewCircuitBreaker(tracker.BreakerConfig(cfg.Risk)),
		Ledger:          ledger.New(cfg.Risk.StartingBalance),
		HistoryCapacity: cfg.Store.HistoryLimit,
		Target:          cfg.Filter.Target,
		BetTarget:       cfg.Clicker.BetTarget,
		SecondTarget:    cfg.Clicker.SecondTarget,
		AntiAFK:         antiAFK,
		SniperArmed:     cfg.SniperArmed,
		StallTimeout:    cfg.OCR.StallTimeout,
		DedupeGap:       cfg.OCR.StallTimeout / 4,
	})
	if err := tr.Restore(rootCtx); err != nil {
		logrus.Warnf("恢复持久化状态失败: %v", err)
	}
	if err := logger.SetSession(tr.Session()); err != nil {
		logrus.Warnf("切换 session 日志失败: %v", err)
	}

	cp, err := controlplane.New(tr, controlplane.Config{
		StartingBalance: cfg.Risk.StartingBalance,
		BetTarget:       cfg.Clicker.BetTarget,
		Calibration:     calib,
		Store:           st,
	})
	if err != nil {
		logrus.Errorf("创建控制面失败: %v", err)
		os.Exit(1)
	}
	if cfg.Control.Listen != "" {
		srv, err := startControlPlane(cfg.Control.Listen, cp.Router())
		if err != nil {
			logrus.Errorf("启动控制面失败: %v", err)
			os.Exit(1)
		}
		shutdowns.OnShutdown("controlplane", func(ctx context.Context) error {
			_ = cp.Close()
			return srv.Shutdown(ctx)
		})
		logrus.Infof("控制面: http://%s", cfg.Control.Listen)
	}

	if cfg.Metrics.Listen != "" {
		hooks := metrics.Hooks{
			Status: func() any { return tr.Snapshot() },
			Health: tr.Health,
		}
		if _, err := metrics.StartAsync(rootCtx, cfg.Metrics.Listen, hooks); err != nil {
			logrus.Warnf("启动 metrics 失败: %v", err)
		} else {
			logrus.Infof("metrics: http://%s/debug/vars", cfg.Metrics.Listen)
		}
	}

	workers := syncgroup.NewSyncGroup()
	if watcher != nil {
		_ = workers.Go(rootCtx, "config-watcher", watcher.Run)
		watcher.Subscribe(func(next *config.Config) {
			if err := tr.ApplyConfig(rootCtx, next); err != nil {
				logrus.Warnf("应用新配置失败: %v", err)
			}
		})
	}

	if useDashboard {
		dash := dashboard.New(tr, "Aviator Bot")
		if err := dash.Start(rootCtx); err != nil {
			logrus.Warnf("启动看板失败: %v", err)
		} else {
			shutdowns.OnShutdown("dashboard", func(context.Context) error { dash.Stop(); return nil })
		}
	}

	src, closeSrc, err := openSource(cfg.OCR)
	if err != nil {
		logrus.Errorf("打开 OCR 来源失败: %v", err)
		os.Exit(1)
	}
	shutdowns.Finally("ocr", func(context.Context) error { return closeSrc() })

	_ = workers.Go(rootCtx, "tracker", func(ctx context.Context) error { return tr.Run(ctx, src) })

	logrus.Infof("✅ 已启动: session=%d strategy=%s sniper=%v clicker=%s", tr.Session(), engine.Active(), cfg.SniperArmed, cfg.Clicker.Mode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logrus.Infof("收到停止信号 %s，正在关闭...", sig)
	case res := <-trackerExit(workers):
		if res.Err != nil {
			logrus.Errorf("观测循环退出: %v", res.Err)
		} else {
			logrus.Info("OCR 来源已结束，正在关闭...")
		}
	}
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	shutdowns.OnShutdown("workers", workers.Wait)
	if failed := shutdowns.Shutdown(shutdownCtx); failed > 0 {
		logrus.Warnf("%d 个组件关闭失败", failed)
	}

	summary := tr.Snapshot().Ledger
	logrus.Infof("✅ 已停止: bets=%d wins=%d losses=%d pnl=%.2f roi=%.2f%%",
		summary.Bets, summary.Wins, summary.Losses, summary.PnL, summary.ROI)
}

// trackerExit 只关心观测循环；配置监听退出不影响运行
func trackerExit(g *syncgroup.SyncGroup) <-chan syncgroup.Result {
	out := make(chan syncgroup.Result, 1)
	go func() {
		for res := range g.Done() {
			if res.Name == "tracker" {
				out <- res
				return
			}
		}
	}()
	return out
}

func openStore(sc config.StoreConfig) (store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(sc.Path), 0o755); err != nil {
		return nil, err
	}
	switch sc.Driver {
	case "badger":
		return badgerstore.Open(badgerstore.OpenOptions{Path: sc.Path, HistoryLimit: sc.HistoryLimit})
	default:
		return sqlitestore.Open(sc.Path, sc.HistoryLimit)
	}
}

func newExecutor(cc config.ClickerConfig, calib *clicker.Calibration) clicker.Executor {
	if cc.Mode == "http" {
		return clicker.NewHTTPExecutor(clicker.HTTPOptions{
			Endpoint:    cc.Endpoint,
			Timeout:     cc.Timeout,
			Jitter:      cc.Jitter,
			Calibration: calib,
		})
	}
	return clicker.NewDryRunExecutor()
}

func openSource(oc config.OCRConfig) (ocr.Source, func() error, error) {
	parser := ocr.Parser{Min: oc.MinValue, Max: oc.MaxValue}
	var r io.ReadCloser = os.Stdin
	if oc.Source != "" && oc.Source != "-" {
		f, err := os.Open(oc.Source)
		if err != nil {
			return nil, nil, err
		}
		r = f
	}
	return ocr.NewLineSource(r, parser), r.Close, nil
}

func startControlPlane(addr string, h http.Handler) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("控制面退出: %v", err)
		}
	}()
	return srv, nil
}
