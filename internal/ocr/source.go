package ocr

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "ocr")

// Reading 一次有效读数
type Reading struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
	Raw   string    `json:"raw"`
}

// Key 去重用的两位小数键
func (r Reading) Key() string { return fmt.Sprintf("%.2f", r.Value) }

// Source 读数来源。Next 阻塞直到有新读数、ctx 取消或来源结束（io.EOF）。
type Source interface {
	Next(ctx context.Context) (Reading, error)
}

// LineSource 从 io.Reader 逐行读取 OCR 文本（通常是外部 OCR 进程的 stdout 或命名管道）
type LineSource struct {
	parser Parser
	now    func() time.Time
	lines  chan string
	errc   chan error
	err    error

	skipped int
}

// NewLineSource 启动后台读取 goroutine；r 读完后 Next 返回 io.EOF
func NewLineSource(r io.Reader, parser Parser) *LineSource {
	s := &LineSource{
		parser: parser,
		now:    time.Now,
		lines:  make(chan string, 64),
		errc:   make(chan error, 1),
	}
	go s.scan(r)
	return s
}

func (s *LineSource) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.lines <- sc.Text()
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	s.errc <- err
	close(s.lines)
}

func (s *LineSource) Next(ctx context.Context) (Reading, error) {
	for {
		select {
		case <-ctx.Done():
			return Reading{}, ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				return Reading{}, s.finalErr()
			}
			v, ok := s.parser.Parse(line)
			if !ok {
				s.skipped++
				log.Debugf("忽略无法解析的 OCR 文本: %q", line)
				continue
			}
			return Reading{Value: v, At: s.now(), Raw: line}, nil
		}
	}
}

// finalErr scan 在关闭 lines 之前已写入 errc
func (s *LineSource) finalErr() error {
	if s.err == nil {
		s.err = <-s.errc
	}
	return s.err
}

// Skipped 被丢弃的行数
func (s *LineSource) Skipped() int { return s.skipped }

// Deduper 把连续重复的读数合并为一局。
// 同一数值在 Gap 以上没有出现过再次出现时视为新一局（Gap=0 时永不视为新局）。
type Deduper struct {
	Gap time.Duration

	lastKey  string
	lastSeen time.Time
}

// Accept 返回该读数是否代表新的一局
func (d *Deduper) Accept(r Reading) bool {
	key := r.Key()
	defer func() {
		d.lastKey = key
		d.lastSeen = r.At
	}()
	if key != d.lastKey {
		return true
	}
	return d.Gap > 0 && r.At.Sub(d.lastSeen) > d.Gap
}

// Reset 清空状态
func (d *Deduper) Reset() {
	d.lastKey = ""
	d.lastSeen = time.Time{}
}
