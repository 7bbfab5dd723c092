package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/pkg/logger"
	"gopkg.in/yaml.v3"
)

// StoreConfig 持久化配置
type StoreConfig struct {
	Driver       string `yaml:"driver" json:"driver"` // sqlite | badger
	Path         string `yaml:"path" json:"path"`
	HistoryLimit int    `yaml:"history_limit" json:"history_limit"` // 只保留最近 N 局
}

// OCRConfig OCR 读数来源
type OCRConfig struct {
	Source       string        `yaml:"source" json:"source"` // "-" 表示 stdin，否则为文件/命名管道路径
	MinValue     float64       `yaml:"min_value" json:"min_value"`
	MaxValue     float64       `yaml:"max_value" json:"max_value"`
	StallTimeout time.Duration `yaml:"stall_timeout" json:"stall_timeout"` // 超过该时长无读数则触发刷新
}

// ClickerConfig 点击执行配置
type ClickerConfig struct {
	Mode         string        `yaml:"mode" json:"mode"` // dryrun | http
	Endpoint     string        `yaml:"endpoint" json:"endpoint"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MinInterval  time.Duration `yaml:"min_interval" json:"min_interval"`
	Jitter       int           `yaml:"jitter" json:"jitter"` // 像素
	BetTarget    string        `yaml:"bet_target" json:"bet_target"`
	SecondTarget string        `yaml:"second_target" json:"second_target"` // 双注第二个下注按钮
}

// FilterConfig 过滤器配置；Cooldown 扩展默认关闭
type FilterConfig struct {
	Target          float64              `yaml:"target" json:"target"` // 未激活策略时用于判定输赢的目标倍数
	CooldownEnabled bool                 `yaml:"cooldown_enabled" json:"cooldown_enabled"`
	Cooldown        gates.CooldownConfig `yaml:"cooldown" json:"cooldown"`
}

// StrategiesConfig 各策略参数；未出现在文件里的策略使用默认参数
type StrategiesConfig struct {
	Active         string                         `yaml:"active" json:"active"`
	Martingale     *strategy.MartingaleParams     `yaml:"martingale" json:"martingale"`
	AntiMartingale *strategy.AntiMartingaleParams `yaml:"anti_martingale" json:"anti_martingale"`
	Fibonacci      *strategy.FibonacciParams      `yaml:"fibonacci" json:"fibonacci"`
	DAlembert      *strategy.DAlembertParams      `yaml:"dalembert" json:"dalembert"`
	Conservative   *strategy.ConservativeParams   `yaml:"conservative" json:"conservative"`
	HighRisk       *strategy.HighRiskParams       `yaml:"high_risk" json:"high_risk"`
	Dual           *strategy.DualParams           `yaml:"dual" json:"dual"`
}

// RiskConfig 会话级风控
type RiskConfig struct {
	MaxConsecutiveErrors int     `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
	MaxSessionLoss       float64 `yaml:"max_session_loss" json:"max_session_loss"` // 0 表示不限制
	TakeProfit           float64 `yaml:"take_profit" json:"take_profit"`           // 0 表示不限制
	StartingBalance      float64 `yaml:"starting_balance" json:"starting_balance"`
}

// AntiAFKConfig 长时间不下注时做一次“下注+取消”
type AntiAFKConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	MinRounds int  `yaml:"min_rounds" json:"min_rounds"`
	MaxRounds int  `yaml:"max_rounds" json:"max_rounds"`
}

type ControlConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen"` // 为空则不启动
}

type DashboardConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Config 应用配置
type Config struct {
	Log        logger.Config    `yaml:"log" json:"log"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	OCR        OCRConfig        `yaml:"ocr" json:"ocr"`
	Clicker    ClickerConfig    `yaml:"clicker" json:"clicker"`
	Filter     FilterConfig     `yaml:"filter" json:"filter"`
	Strategies StrategiesConfig `yaml:"strategies" json:"strategies"`
	Risk       RiskConfig       `yaml:"risk" json:"risk"`
	AntiAFK    AntiAFKConfig    `yaml:"anti_afk" json:"anti_afk"`
	Control    ControlConfig    `yaml:"control" json:"control"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Dashboard  DashboardConfig  `yaml:"dashboard" json:"dashboard"`
	// SniperArmed 启动时是否允许真实下注（否则只记录信号）
	SniperArmed bool `yaml:"sniper_armed" json:"sniper_armed"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Log: logger.Config{
			Level:      "info",
			OutputFile: "logs/bot.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Store: StoreConfig{Driver: "sqlite", Path: "data/aviator.db", HistoryLimit: 50},
		OCR: OCRConfig{
			Source:       "-",
			MinValue:     1.0,
			MaxValue:     1000.0,
			StallTimeout: 60 * time.Second,
		},
		Clicker: ClickerConfig{
			Mode:         "dryrun",
			Endpoint:     "http://127.0.0.1:5000",
			Timeout:      5 * time.Second,
			MinInterval:  500 * time.Millisecond,
			Jitter:       4,
			BetTarget:    "btn1",
			SecondTarget: "btn2",
		},
		Filter: FilterConfig{
			Target:   1.11,
			Cooldown: gates.DefaultCooldownConfig(),
		},
		Strategies: StrategiesConfig{Active: string(strategy.KindNone)},
		Risk:       RiskConfig{MaxConsecutiveErrors: 5},
		AntiAFK:    AntiAFKConfig{Enabled: true, MinRounds: 2, MaxRounds: 4},
		Control:    ControlConfig{Listen: "127.0.0.1:5001"},
		Metrics:    MetricsConfig{Listen: ""},
	}
}

// Load 加载配置：文件 > 环境变量 > 默认值。filePath 为空时只使用环境变量和默认值。
func Load(filePath string) (*Config, error) {
	cfg := Default()
	applyEnv(cfg)

	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.OutputFile = getEnv("LOG_FILE", cfg.Log.OutputFile)
	cfg.Log.LogBySession = parseBoolEnv("LOG_BY_SESSION", cfg.Log.LogBySession)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Path = getEnv("STORE_PATH", cfg.Store.Path)
	cfg.Store.HistoryLimit = parseIntEnv("STORE_HISTORY_LIMIT", cfg.Store.HistoryLimit)

	cfg.OCR.Source = getEnv("OCR_SOURCE", cfg.OCR.Source)

	cfg.Clicker.Mode = getEnv("CLICKER_MODE", cfg.Clicker.Mode)
	cfg.Clicker.Endpoint = getEnv("CLICKER_ENDPOINT", cfg.Clicker.Endpoint)
	cfg.Clicker.Jitter = parseIntEnv("CLICKER_JITTER", cfg.Clicker.Jitter)

	cfg.Filter.Target = parseFloatEnv("TARGET_MULTIPLIER", cfg.Filter.Target)
	cfg.Filter.CooldownEnabled = parseBoolEnv("FILTER_COOLDOWN_ENABLED", cfg.Filter.CooldownEnabled)

	cfg.Strategies.Active = getEnv("ACTIVE_STRATEGY", cfg.Strategies.Active)

	cfg.Risk.MaxSessionLoss = parseFloatEnv("RISK_MAX_SESSION_LOSS", cfg.Risk.MaxSessionLoss)
	cfg.Risk.TakeProfit = parseFloatEnv("RISK_TAKE_PROFIT", cfg.Risk.TakeProfit)
	cfg.Risk.StartingBalance = parseFloatEnv("STARTING_BALANCE", cfg.Risk.StartingBalance)

	cfg.AntiAFK.Enabled = parseBoolEnv("ANTI_AFK_ENABLED", cfg.AntiAFK.Enabled)

	cfg.Control.Listen = getEnv("CONTROL_LISTEN", cfg.Control.Listen)
	cfg.Metrics.Listen = getEnv("METRICS_LISTEN", cfg.Metrics.Listen)
	cfg.Dashboard.Enabled = parseBoolEnv("DASHBOARD_ENABLED", cfg.Dashboard.Enabled)
	cfg.SniperArmed = parseBoolEnv("SNIPER_ARMED", cfg.SniperArmed)
}

// Validate 校验配置，返回所有错误
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "sqlite", "badger":
	default:
		errs = append(errs, fmt.Errorf("store.driver 必须是 sqlite 或 badger: %q", c.Store.Driver))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path 未配置"))
	}
	if c.Store.HistoryLimit < 15 {
		errs = append(errs, fmt.Errorf("store.history_limit 至少为 15: %d", c.Store.HistoryLimit))
	}

	if c.OCR.MinValue < 1.0 || c.OCR.MaxValue <= c.OCR.MinValue {
		errs = append(errs, fmt.Errorf("ocr 取值范围无效: [%v, %v]", c.OCR.MinValue, c.OCR.MaxValue))
	}

	switch c.Clicker.Mode {
	case "dryrun":
	case "http":
		if c.Clicker.Endpoint == "" {
			errs = append(errs, errors.New("clicker.endpoint 未配置"))
		}
	default:
		errs = append(errs, fmt.Errorf("clicker.mode 必须是 dryrun 或 http: %q", c.Clicker.Mode))
	}
	if c.Clicker.Jitter < 0 {
		errs = append(errs, fmt.Errorf("clicker.jitter 不能为负: %d", c.Clicker.Jitter))
	}
	if c.Clicker.BetTarget == "" {
		errs = append(errs, errors.New("clicker.bet_target 未配置"))
	}

	if c.Filter.Target < 1.0 {
		errs = append(errs, fmt.Errorf("filter.target 必须 >= 1.0: %v", c.Filter.Target))
	}

	if _, err := strategy.ParseKind(c.Strategies.Active); err != nil {
		errs = append(errs, fmt.Errorf("strategies.active: %w", err))
	}
	for kind, p := range c.Strategies.Params() {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("strategies.%s: %w", kind, err))
		}
	}

	if c.AntiAFK.Enabled && (c.AntiAFK.MinRounds < 1 || c.AntiAFK.MaxRounds < c.AntiAFK.MinRounds) {
		errs = append(errs, fmt.Errorf("anti_afk 轮数范围无效: [%d, %d]", c.AntiAFK.MinRounds, c.AntiAFK.MaxRounds))
	}
	if c.Risk.MaxSessionLoss < 0 || c.Risk.TakeProfit < 0 {
		errs = append(errs, errors.New("risk 限额不能为负"))
	}

	return errors.Join(errs...)
}

// Params 返回文件中显式配置的策略参数
func (s StrategiesConfig) Params() map[strategy.Kind]strategy.Params {
	out := make(map[strategy.Kind]strategy.Params)
	if s.Martingale != nil {
		out[strategy.KindMartingale] = *s.Martingale
	}
	if s.AntiMartingale != nil {
		out[strategy.KindAntiMartingale] = *s.AntiMartingale
	}
	if s.Fibonacci != nil {
		out[strategy.KindFibonacci] = *s.Fibonacci
	}
	if s.DAlembert != nil {
		out[strategy.KindDAlembert] = *s.DAlembert
	}
	if s.Conservative != nil {
		out[strategy.KindConservative] = *s.Conservative
	}
	if s.HighRisk != nil {
		out[strategy.KindHighRisk] = *s.HighRisk
	}
	if s.Dual != nil {
		out[strategy.KindDual] = *s.Dual
	}
	return out
}

// ParamsWithDefaults 所有策略的参数：显式配置优先，其余使用默认值
func (s StrategiesConfig) ParamsWithDefaults() map[strategy.Kind]strategy.Params {
	out := s.Params()
	for _, kind := range strategy.Kinds {
		if _, ok := out[kind]; ok {
			continue
		}
		if p, err := strategy.DefaultParams(kind); err == nil {
			out[kind] = p
		}
	}
	return out
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseFloatEnv 解析浮点数环境变量
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
