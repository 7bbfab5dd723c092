package clicker

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "clicker")

// 点击服务接口
const (
	pathClick         = "/click"
	pathHumanSequence = "/human_click_sequence"
	pathReload        = "/reload_page"
)

type clickRequest struct {
	SlotID string `json:"slot_id"`
}

type sequenceRequest struct {
	Clicks []Point `json:"clicks"`
}

// HTTPOptions HTTPExecutor 配置
type HTTPOptions struct {
	Endpoint    string
	Timeout     time.Duration
	Jitter      int
	Calibration *Calibration // 可为 nil，此时只按 slot_id 点击
}

// HTTPExecutor 通过本地点击服务执行命令。
// 目标已校准时发送带抖动的坐标序列，否则按 slot_id 点击。
// 下注点击不能重试（重试可能导致重复下注），所以 resty 不开启 retry。
type HTTPExecutor struct {
	client *resty.Client
	calib  *Calibration
	jitter int

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewHTTPExecutor(opt HTTPOptions) *HTTPExecutor {
	host := strings.TrimSuffix(opt.Endpoint, "/")
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "aviatorbot")
	calib := opt.Calibration
	if calib == nil {
		calib = NewCalibration()
	}
	return &HTTPExecutor{
		client: client,
		calib:  calib,
		jitter: opt.Jitter,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// Calibration 使用中的校准数据
func (e *HTTPExecutor) Calibration() *Calibration { return e.calib }

func (e *HTTPExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res := Result{CommandID: cmd.ID}

	switch cmd.Action {
	case ActionReload:
		if err := e.post(ctx, pathReload, nil); err != nil {
			return res, err
		}
	case ActionClick:
		if err := e.click(ctx, cmd.Target, &res); err != nil {
			return res, err
		}
	case ActionSequence:
		for i, step := range cmd.Steps {
			if err := sleepCtx(ctx, step.Delay); err != nil {
				return res, err
			}
			if err := e.click(ctx, step.Target, &res); err != nil {
				return res, errors.Wrapf(err, "step %d", i)
			}
		}
	}
	res.Took = time.Since(start)
	log.Debugf("点击完成: id=%s type=%s action=%s clicks=%d took=%s",
		cmd.ID, cmd.ClickType, cmd.Action, res.Clicks, res.Took)
	return res, nil
}

func (e *HTTPExecutor) click(ctx context.Context, target string, res *Result) error {
	e.rngMu.Lock()
	p, ok := e.calib.Pick(e.rng, target, e.jitter)
	e.rngMu.Unlock()

	var err error
	if ok {
		err = e.post(ctx, pathHumanSequence, sequenceRequest{Clicks: []Point{p}})
		res.Points = append(res.Points, p)
	} else {
		err = e.post(ctx, pathClick, clickRequest{SlotID: target})
	}
	if err != nil {
		return errors.Wrapf(err, "click %s", target)
	}
	res.Clicks++
	return nil
}

func (e *HTTPExecutor) post(ctx context.Context, path string, body any) error {
	r := e.client.R().SetContext(ctx)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Post(path)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	if !resp.IsSuccess() {
		return errors.Errorf("POST %s: http %d: %s", path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
