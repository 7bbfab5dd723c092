// Package controlplane 本地控制面：查询状态、修改策略 / 开关、websocket 推送快照。
package controlplane

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "controlplane")

// Controller 控制面操作的对象（由 tracker.Tracker 实现）
type Controller interface {
	Snapshot() tracker.Snapshot
	LastAnalysis() (gates.FilterTrace, bool)
	History(n int) domain.History
	Counters(ctx context.Context) (store.Counters, error)

	Configure(ctx context.Context, kind strategy.Kind, p strategy.Params) error
	Activate(ctx context.Context, kind strategy.Kind) error
	SetBankroll(ctx context.Context, v float64) error
	SetSniper(ctx context.Context, armed bool) error
	SetAntiAFK(ctx context.Context, enabled bool) error
	NewSession(ctx context.Context, startingBalance float64) (int64, error)
	Halt()
	Resume()
	ManualClick(ctx context.Context, cmd clicker.Command) (clicker.Result, error)

	Subscribe(buffer int) (<-chan tracker.Snapshot, func())
}

type Config struct {
	// StartingBalance 新 session 未指定初始资金时使用
	StartingBalance float64
	BetTarget       string
	// Calibration / Store 可为 nil，此时校准接口返回 404
	Calibration *clicker.Calibration
	Store       store.Store
}

type Server struct {
	cfg  Config
	ctrl Controller

	ctx    context.Context
	cancel context.CancelFunc
	wsWG   sync.WaitGroup
}

func New(ctrl Controller, cfg Config) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("controller is required")
	}
	if cfg.BetTarget == "" {
		cfg.BetTarget = "btn1"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, ctrl: ctrl, ctx: ctx, cancel: cancel}, nil
}

// Close 断开所有 websocket 连接
func (s *Server) Close() error {
	s.cancel()
	s.wsWG.Wait()
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/analysis/latest", s.handleAnalysisLatest)
	api.GET("/history", s.handleHistory)

	strat := api.Group("/strategy")
	strat.POST("/:kind/configure", s.handleConfigure)
	strat.POST("/activate", s.handleActivate)

	api.POST("/bankroll", s.handleBankroll)
	api.POST("/sniper", s.handleSniper)
	api.POST("/anti_afk", s.handleAntiAFK)
	api.POST("/session/new", s.handleNewSession)

	breaker := api.Group("/breaker")
	breaker.POST("/halt", s.handleHalt)
	breaker.POST("/resume", s.handleResume)

	api.POST("/click/test", s.handleClickTest)

	calib := api.Group("/calibration/:target")
	calib.GET("", s.handleCalibrationGet)
	calib.PUT("", s.handleCalibrationPut)

	return r
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, strategy.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, strategy.ErrNotConfigured):
		status = http.StatusConflict
	case errors.Is(err, clicker.ErrEmptyCommand):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
