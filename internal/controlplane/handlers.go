package controlplane

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/gin-gonic/gin"
)

const maxHistory = 500

func (s *Server) handleStatus(c *gin.Context) {
	counters, err := s.ctrl.Counters(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot": s.ctrl.Snapshot(),
		"counters": counters,
	})
}

func (s *Server) handleAnalysisLatest(c *gin.Context) {
	tr, ok := s.ctrl.LastAnalysis()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"decision": false, "stage": "none"})
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) handleHistory(c *gin.Context) {
	n := 50
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			badRequest(c, "n must be a positive integer")
			return
		}
		n = min(v, maxHistory)
	}
	c.JSON(http.StatusOK, gin.H{"rounds": s.ctrl.History(n)})
}

func (s *Server) handleConfigure(c *gin.Context) {
	kind, err := strategy.ParseKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := strategy.DecodeParams(kind, body)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", strategy.ErrInvalidParameter, err))
		return
	}
	if err := s.ctrl.Configure(c.Request.Context(), kind, p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "params": p})
}

func (s *Server) handleActivate(c *gin.Context) {
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	kind, err := strategy.ParseKind(req.Kind)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.ctrl.Activate(c.Request.Context(), kind); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": kind})
}

func (s *Server) handleBankroll(c *gin.Context) {
	var req struct {
		Value *float64 `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.ctrl.SetBankroll(c.Request.Context(), *req.Value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bankroll": *req.Value})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
	Armed   *bool `json:"armed"`
}

func (r toggleRequest) value() (bool, bool) {
	switch {
	case r.Armed != nil:
		return *r.Armed, true
	case r.Enabled != nil:
		return *r.Enabled, true
	}
	return false, false
}

func (s *Server) handleSniper(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	armed, ok := req.value()
	if !ok {
		badRequest(c, "armed is required")
		return
	}
	if err := s.ctrl.SetSniper(c.Request.Context(), armed); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"armed": armed})
}

func (s *Server) handleAntiAFK(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	enabled, ok := req.value()
	if !ok {
		badRequest(c, "enabled is required")
		return
	}
	if err := s.ctrl.SetAntiAFK(c.Request.Context(), enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (s *Server) handleNewSession(c *gin.Context) {
	var req struct {
		StartingBalance *float64 `json:"starting_balance"`
	}
	// body 可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	start := s.cfg.StartingBalance
	if req.StartingBalance != nil {
		start = *req.StartingBalance
	}
	id, err := s.ctrl.NewSession(c.Request.Context(), start)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": id})
}

func (s *Server) handleHalt(c *gin.Context) {
	s.ctrl.Halt()
	c.JSON(http.StatusOK, gin.H{"halted": true})
}

func (s *Server) handleResume(c *gin.Context) {
	s.ctrl.Resume()
	c.JSON(http.StatusOK, gin.H{"halted": false})
}

// handleClickTest 手动测试点击：bet 单击、fake 下注后取消、reload 刷新
func (s *Server) handleClickTest(c *gin.Context) {
	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var cmd clicker.Command
	switch req.Type {
	case store.ClickBet:
		cmd = clicker.Click(store.ClickManual, s.cfg.BetTarget)
	case store.ClickFake:
		cmd = clicker.Sequence(store.ClickFake,
			clicker.Step{Target: s.cfg.BetTarget},
			clicker.Step{Target: s.cfg.BetTarget},
		)
	case store.ClickReload:
		cmd = clicker.Reload(store.ClickReload)
	default:
		badRequest(c, "type must be one of bet, fake, reload")
		return
	}
	res, err := s.ctrl.ManualClick(c.Request.Context(), cmd)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "command_id": cmd.ID})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCalibrationGet(c *gin.Context) {
	if s.cfg.Calibration == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "calibration not available"})
		return
	}
	target := c.Param("target")
	c.JSON(http.StatusOK, gin.H{"target": target, "points": s.cfg.Calibration.Points(target)})
}

func (s *Server) handleCalibrationPut(c *gin.Context) {
	if s.cfg.Calibration == nil || s.cfg.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "calibration not available"})
		return
	}
	var req struct {
		Points []clicker.Point `json:"points"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	target := c.Param("target")
	if err := clicker.SaveCalibration(c.Request.Context(), s.cfg.Store, s.cfg.Calibration, target, req.Points); err != nil {
		writeError(c, err)
		return
	}
	log.Infof("校准已更新: target=%s points=%d", target, len(req.Points))
	c.JSON(http.StatusOK, gin.H{"target": target, "points": req.Points})
}
