// Package ocr 把外部 OCR 进程输出的文本转换为倍数读数。
// 截屏和图像识别不在本进程内完成。
package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

// 默认可接受范围
const (
	DefaultMin = 1.0
	DefaultMax = 1000.0
)

var multiplierRe = regexp.MustCompile(`(\d+(?:\.\d+)?)x?`)

// 常见误识别字符
var glyphFixer = strings.NewReplacer(
	" ", "",
	"\t", "",
	"l", "1",
	"i", "1",
	"o", "0",
	",", ".",
)

// Parser 带取值范围的文本解析器
type Parser struct {
	Min float64
	Max float64
}

// DefaultParser [1.0, 1000.0]
var DefaultParser = Parser{Min: DefaultMin, Max: DefaultMax}

// ParseMultiplier 使用默认范围解析
func ParseMultiplier(text string) (float64, bool) {
	return DefaultParser.Parse(text)
}

// Parse 清洗文本并取第一个数字；超出范围返回 false
func (p Parser) Parse(text string) (float64, bool) {
	clean := glyphFixer.Replace(strings.ToLower(strings.TrimSpace(text)))
	m := multiplierRe.FindStringSubmatch(clean)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if v < p.Min || v > p.Max {
		return 0, false
	}
	return v, true
}
