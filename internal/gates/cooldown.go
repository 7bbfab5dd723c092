package gates

import (
	"fmt"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
)

// CooldownConfig 扩展阶段的阈值。轮数为 0 / 阈值为 0 表示关闭对应检查。
type CooldownConfig struct {
	WinRounds   int     `yaml:"win_rounds" json:"win_rounds"`   // 赢之后至少再观察多少局
	LossRounds  int     `yaml:"loss_rounds" json:"loss_rounds"` // 输之后至少再观察多少局
	TrendMin    float64 `yaml:"trend_min" json:"trend_min"`     // 最近 TrendWindow 局均值下限
	TrendWindow int     `yaml:"trend_window" json:"trend_window"`
	NoiseFloor  float64 `yaml:"noise_floor" json:"noise_floor"` // 最新一局低于该值视为噪声

	// 基于时间的冷却（可选，0 关闭）
	WinFor  time.Duration `yaml:"win_for" json:"win_for"`
	LossFor time.Duration `yaml:"loss_for" json:"loss_for"`
}

// DefaultCooldownConfig 默认阈值；扩展阶段默认不启用，需在配置里打开
func DefaultCooldownConfig() CooldownConfig {
	return CooldownConfig{
		WinRounds:   8,
		LossRounds:  3,
		TrendMin:    1.80,
		TrendWindow: 3,
		NoiseFloor:  1.10,
	}
}

// CooldownStage 可插拔的扩展阶段：输赢后的冷却、趋势和噪声检查。
// 它需要历史窗口之外的时间状态（最近一次赢/输的时间），所以不放进 Evaluate。
type CooldownStage struct {
	cfg CooldownConfig
}

func NewCooldownStage(cfg CooldownConfig) *CooldownStage {
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 3
	}
	return &CooldownStage{cfg: cfg}
}

func (c *CooldownStage) Config() CooldownConfig { return c.cfg }

// Evaluate 按 win cooldown → loss cooldown → trend → noise 的顺序检查。
// history 按时间倒序；lastWin/lastLoss 零值表示没有记录。
func (c *CooldownStage) Evaluate(history domain.History, now, lastWin, lastLoss time.Time) (bool, string) {
	if len(history) == 0 {
		return false, "cooldown: empty history"
	}

	if !lastWin.IsZero() {
		if since := roundsSince(history, lastWin); c.cfg.WinRounds > 0 && since < c.cfg.WinRounds {
			return false, fmt.Sprintf("win cooldown (%d rounds left)", c.cfg.WinRounds-since)
		}
		if c.cfg.WinFor > 0 && now.Sub(lastWin) < c.cfg.WinFor {
			return false, fmt.Sprintf("win cooldown (%s left)", (c.cfg.WinFor - now.Sub(lastWin)).Round(time.Second))
		}
	}

	if !lastLoss.IsZero() {
		if since := roundsSince(history, lastLoss); c.cfg.LossRounds > 0 && since < c.cfg.LossRounds {
			return false, fmt.Sprintf("loss cooldown (%d rounds left)", c.cfg.LossRounds-since)
		}
		if c.cfg.LossFor > 0 && now.Sub(lastLoss) < c.cfg.LossFor {
			return false, fmt.Sprintf("loss cooldown (%s left)", (c.cfg.LossFor - now.Sub(lastLoss)).Round(time.Second))
		}
	}

	if c.cfg.TrendMin > 0 {
		m := history.Multipliers(c.cfg.TrendWindow)
		sum := 0.0
		for _, x := range m {
			sum += x
		}
		if mean := sum / float64(len(m)); mean < c.cfg.TrendMin {
			return false, fmt.Sprintf("trend low (mean %.2f < %.2f)", mean, c.cfg.TrendMin)
		}
	}

	if c.cfg.NoiseFloor > 0 && history[0].Multiplier < c.cfg.NoiseFloor {
		return false, fmt.Sprintf("noise (last %.2fx < %.2f)", history[0].Multiplier, c.cfg.NoiseFloor)
	}
	return true, ""
}

// roundsSince 统计时间戳晚于 t 的局数
func roundsSince(history domain.History, t time.Time) int {
	n := 0
	for _, r := range history {
		if !r.Timestamp.After(t) {
			// 倒序：之后都更早
			break
		}
		n++
	}
	return n
}
