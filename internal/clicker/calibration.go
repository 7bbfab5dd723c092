package clicker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/betbot/aviatorbot/internal/store"
)

// Point 屏幕坐标
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Calibration 每个点击目标的一组校准点。
// 点击时随机选一个点并加上抖动，避免每次落在同一像素。
type Calibration struct {
	mu     sync.RWMutex
	points map[string][]Point
}

func NewCalibration() *Calibration {
	return &Calibration{points: make(map[string][]Point)}
}

// Set 替换某个目标的校准点；pts 为空表示删除
func (c *Calibration) Set(target string, pts []Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(pts) == 0 {
		delete(c.points, target)
		return
	}
	c.points[target] = append([]Point(nil), pts...)
}

// Points 某个目标的校准点拷贝
func (c *Calibration) Points(target string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Point(nil), c.points[target]...)
}

// Targets 已校准的目标
func (c *Calibration) Targets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.points))
	for k := range c.points {
		out = append(out, k)
	}
	return out
}

// Pick 随机取一个校准点，x/y 各加 [-jitter, jitter] 的偏移。目标未校准时返回 false。
func (c *Calibration) Pick(rng *rand.Rand, target string, jitter int) (Point, bool) {
	c.mu.RLock()
	pts := c.points[target]
	c.mu.RUnlock()
	if len(pts) == 0 {
		return Point{}, false
	}
	p := pts[rng.IntN(len(pts))]
	if jitter > 0 {
		p.X += rng.IntN(2*jitter+1) - jitter
		p.Y += rng.IntN(2*jitter+1) - jitter
	}
	return p, true
}

// LoadCalibration 从存储读取指定目标的校准点；没有记录的目标跳过
func LoadCalibration(ctx context.Context, s store.Store, targets ...string) (*Calibration, error) {
	c := NewCalibration()
	for _, t := range targets {
		raw, ok, err := s.Get(ctx, store.CalibrationKey(t))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var pts []Point
		if err := json.Unmarshal([]byte(raw), &pts); err != nil {
			return nil, fmt.Errorf("decode calibration %s: %w", t, err)
		}
		c.Set(t, pts)
	}
	return c, nil
}

// SaveCalibration 保存某个目标的校准点，同时更新内存中的 Calibration
func SaveCalibration(ctx context.Context, s store.Store, c *Calibration, target string, pts []Point) error {
	data, err := json.Marshal(pts)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, store.CalibrationKey(target), string(data)); err != nil {
		return err
	}
	c.Set(target, pts)
	return nil
}
