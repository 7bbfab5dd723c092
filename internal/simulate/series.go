package simulate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/betbot/aviatorbot/internal/ocr"
)

// bucket 合成倍数分布的一个区间
type bucket struct {
	cum    float64 // 累积概率上界
	lo, hi float64
}

// 50% [1,1.5) / 30% [1.5,3) / 15% [3,10) / 4% [10,20) / 1% [20,100)
var buckets = []bucket{
	{0.50, 1.0, 1.5},
	{0.80, 1.5, 3.0},
	{0.95, 3.0, 10.0},
	{0.99, 10.0, 20.0},
	{1.00, 20.0, 100.0},
}

// Synthetic 生成 n 局合成倍数（两位小数，按时间正序）
func Synthetic(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		r := rng.Float64()
		b := buckets[len(buckets)-1]
		for _, c := range buckets {
			if r < c.cum {
				b = c
				break
			}
		}
		v := b.lo + rng.Float64()*(b.hi-b.lo)
		out[i] = float64(int(v*100)) / 100
	}
	return out
}

// ErrNoData CSV 中没有任何可用的倍数
var ErrNoData = errors.New("simulate: no multipliers found")

// LoadCSV 读取倍数序列（按时间正序）。
// 有表头时取名为 multiplier 的列，否则取第一列；单元格按 OCR 文本规则解析（支持 "2.45x"、"1,30"）。
func LoadCSV(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	col := 0
	var out []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if line == 1 {
			if idx := headerIndex(rec); idx >= 0 {
				col = idx
				continue
			}
		}
		if col >= len(rec) {
			continue
		}
		v, ok := ocr.ParseMultiplier(rec[col])
		if !ok {
			log.Debugf("csv line %d: 跳过 %q", line, rec[col])
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func headerIndex(rec []string) int {
	for i, h := range rec {
		if strings.EqualFold(strings.TrimSpace(h), "multiplier") {
			return i
		}
	}
	return -1
}
