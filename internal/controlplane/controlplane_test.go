package controlplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/betbot/aviatorbot/internal/clicker"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/ledger"
	"github.com/betbot/aviatorbot/internal/ocr"
	"github.com/betbot/aviatorbot/internal/risk"
	"github.com/betbot/aviatorbot/internal/store/sqlitestore"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/internal/tracker"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapView 快照中测试关心的字段（Params 是接口，不能直接反序列化）
type snapView struct {
	Rounds []json.RawMessage `json:"rounds"`
	Halted bool              `json:"halted"`
}

type env struct {
	srv  *Server
	h    http.Handler
	tr   *tracker.Tracker
	exec *clicker.DryRunExecutor
	cb   *risk.CircuitBreaker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s, err := sqlitestore.Open(":memory:", 50)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e := &env{
		exec: clicker.NewDryRunExecutor(),
		cb:   risk.NewCircuitBreaker(risk.CircuitBreakerConfig{}),
	}
	e.tr = tracker.New(tracker.Options{
		Engine:   strategy.NewEngine(),
		Filter:   gates.New(nil),
		Store:    s,
		Executor: e.exec,
		Breaker:  e.cb,
		Ledger:   ledger.New(100),
	})
	calib := clicker.NewCalibration()
	e.srv, err = New(e.tr, Config{StartingBalance: 250, Calibration: calib, Store: s})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.srv.Close() })
	e.h = e.srv.Router()
	return e
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestNew_RequiresController(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestConfigureAndActivate(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/strategy/activate", `{"kind":"martingale"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "未配置不能激活")

	w = e.do(t, http.MethodPost, "/api/strategy/martingale/configure", `{"base_bet":0,"target":1.5,"max_doubles":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/strategy/martingale/configure", `{"base_bet":2,"target":1.5,"max_doubles":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/strategy/activate", `{"kind":"martingale"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, strategy.KindMartingale, e.tr.Snapshot().Strategy.Active)

	cases := []struct {
		path, body string
		want       int
	}{
		{"/api/strategy/bogus/configure", `{}`, http.StatusBadRequest},
		{"/api/strategy/martingale/configure", `not json`, http.StatusBadRequest},
		{"/api/strategy/activate", `{"kind":"bogus"}`, http.StatusBadRequest},
		{"/api/strategy/activate", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, e.do(t, http.MethodPost, tc.path, tc.body).Code, tc.path+" "+tc.body)
	}
}

func TestToggles(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/sniper", `{"armed":true}`).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/anti_afk", `{"enabled":false}`).Code)
	snap := e.tr.Snapshot()
	assert.True(t, snap.SniperArmed)
	assert.False(t, snap.AntiAFK)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/sniper", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/bankroll", `{}`).Code)
}

func TestHaltResume(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/breaker/halt", "").Code)
	halted, _ := e.cb.Halted()
	assert.True(t, halted)
	assert.True(t, e.tr.Snapshot().Halted)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/breaker/resume", "").Code)
	halted, _ = e.cb.Halted()
	assert.False(t, halted)
}

func TestNewSession(t *testing.T) {
	e := newEnv(t)
	before := e.tr.Session()

	w := e.do(t, http.MethodPost, "/api/session/new", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Session int64 `json:"session"`
	}
	decode(t, w, &resp)
	assert.Equal(t, before+1, resp.Session)
	assert.Equal(t, 250.0, e.tr.Snapshot().Ledger.Starting)

	w = e.do(t, http.MethodPost, "/api/session/new", `{"starting_balance":40}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40.0, e.tr.Snapshot().Ledger.Starting)
}

func TestStatusHistoryAnalysis(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, v := range []float64{1.2, 3.4, 1.05} {
		e.tr.Observe(ctx, readingAt(v, t0.Add(time.Duration(i)*10*time.Second)))
	}

	w := e.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Snapshot snapView `json:"snapshot"`
		Counters struct {
			Rounds int `json:"rounds"`
		} `json:"counters"`
	}
	decode(t, w, &status)
	assert.Equal(t, 3, status.Counters.Rounds)
	assert.Len(t, status.Snapshot.Rounds, 3)

	w = e.do(t, http.MethodGet, "/api/history?n=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Rounds []struct {
			Multiplier float64 `json:"multiplier"`
		} `json:"rounds"`
	}
	decode(t, w, &hist)
	require.Len(t, hist.Rounds, 2)
	assert.Equal(t, 1.05, hist.Rounds[0].Multiplier, "最新在前")

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/history?n=-1", "").Code)

	w = e.do(t, http.MethodGet, "/api/analysis/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var tr gates.FilterTrace
	decode(t, w, &tr)
	assert.False(t, tr.Decision)
	assert.Equal(t, gates.StageCalibrating, tr.Stage)
}

func TestClickTest(t *testing.T) {
	e := newEnv(t)

	for _, typ := range []string{"bet", "fake", "reload"} {
		w := e.do(t, http.MethodPost, "/api/click/test", `{"type":"`+typ+`"}`)
		require.Equal(t, http.StatusOK, w.Code, typ)
	}
	cmds := e.exec.Executed()
	require.Len(t, cmds, 3)
	assert.Equal(t, clicker.ActionClick, cmds[0].Action)
	assert.Equal(t, clicker.ActionSequence, cmds[1].Action)
	assert.Equal(t, clicker.ActionReload, cmds[2].Action)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/click/test", `{"type":"nuke"}`).Code)
}

func TestCalibration(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPut, "/api/calibration/btn1", `{"points":[{"x":10,"y":20},{"x":12,"y":22}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/calibration/btn1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Points []clicker.Point `json:"points"`
	}
	decode(t, w, &resp)
	assert.Equal(t, []clicker.Point{{X: 10, Y: 20}, {X: 12, Y: 22}}, resp.Points)
}

func TestWebsocket_PushesSnapshots(t *testing.T) {
	e := newEnv(t)
	ts := httptest.NewServer(e.h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first snapView
	require.NoError(t, conn.ReadJSON(&first))
	assert.False(t, first.Halted)

	// 订阅在第一帧之前已建立，Halt 一定会推送
	e.tr.Halt()
	var next snapView
	require.NoError(t, conn.ReadJSON(&next))
	assert.True(t, next.Halted)
}

func TestBankroll_InvalidValue(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/bankroll", `{"value":-5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func readingAt(v float64, at time.Time) ocr.Reading {
	return ocr.Reading{Value: v, At: at}
}
