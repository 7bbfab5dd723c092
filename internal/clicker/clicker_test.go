package clicker

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/betbot/aviatorbot/internal/store"
	"github.com/betbot/aviatorbot/internal/store/sqlitestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	Path string
	Body string
}

type fakeClickService struct {
	mu     sync.Mutex
	hits   []hit
	status int
}

func (f *fakeClickService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.hits = append(f.hits, hit{Path: r.URL.Path, Body: string(b)})
	status := f.status
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (f *fakeClickService) Hits() []hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hit(nil), f.hits...)
}

func newService(t *testing.T) (*fakeClickService, *httptest.Server) {
	svc := &fakeClickService{}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return svc, srv
}

func TestHTTPExecutor_ClickBySlot(t *testing.T) {
	svc, srv := newService(t)
	ex := NewHTTPExecutor(HTTPOptions{Endpoint: srv.URL + "/"})

	res, err := ex.Execute(t.Context(), Click(store.ClickBet, "btn1"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clicks)

	hits := svc.Hits()
	require.Len(t, hits, 1)
	assert.Equal(t, pathClick, hits[0].Path)
	assert.JSONEq(t, `{"slot_id":"btn1"}`, hits[0].Body)
}

func TestHTTPExecutor_CalibratedTargetUsesJitteredPoint(t *testing.T) {
	svc, srv := newService(t)
	calib := NewCalibration()
	calib.Set("btn1", []Point{{X: 100, Y: 200}})
	ex := NewHTTPExecutor(HTTPOptions{Endpoint: srv.URL, Jitter: 4, Calibration: calib})

	res, err := ex.Execute(t.Context(), Click(store.ClickBet, "btn1"))
	require.NoError(t, err)
	require.Len(t, res.Points, 1)

	hits := svc.Hits()
	require.Len(t, hits, 1)
	assert.Equal(t, pathHumanSequence, hits[0].Path)
	var req sequenceRequest
	require.NoError(t, json.Unmarshal([]byte(hits[0].Body), &req))
	require.Len(t, req.Clicks, 1)
	assert.InDelta(t, 100, req.Clicks[0].X, 4)
	assert.InDelta(t, 200, req.Clicks[0].Y, 4)
}

func TestHTTPExecutor_SequenceAndReload(t *testing.T) {
	svc, srv := newService(t)
	ex := NewHTTPExecutor(HTTPOptions{Endpoint: srv.URL})

	cmd := Sequence(store.ClickFake, Step{Target: "btn1"}, Step{Target: "btn1", Delay: 5 * time.Millisecond})
	res, err := ex.Execute(t.Context(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Clicks)

	_, err = ex.Execute(t.Context(), Reload(store.ClickReload))
	require.NoError(t, err)

	hits := svc.Hits()
	require.Len(t, hits, 3)
	assert.Equal(t, pathClick, hits[0].Path)
	assert.Equal(t, pathClick, hits[1].Path)
	assert.Equal(t, pathReload, hits[2].Path)
}

func TestHTTPExecutor_Non2xxIsError(t *testing.T) {
	svc, srv := newService(t)
	svc.status = http.StatusInternalServerError
	ex := NewHTTPExecutor(HTTPOptions{Endpoint: srv.URL})

	_, err := ex.Execute(t.Context(), Click(store.ClickBet, "btn1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Len(t, svc.Hits(), 1, "下注点击不重试")
}

func TestHTTPExecutor_RejectsEmptyCommand(t *testing.T) {
	_, srv := newService(t)
	ex := NewHTTPExecutor(HTTPOptions{Endpoint: srv.URL})
	_, err := ex.Execute(t.Context(), Click(store.ClickBet, ""))
	assert.ErrorIs(t, err, ErrEmptyCommand)
	_, err = ex.Execute(t.Context(), Sequence(store.ClickFake))
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestCalibration_PickWithinJitter(t *testing.T) {
	c := NewCalibration()
	rng := rand.New(rand.NewPCG(1, 2))
	_, ok := c.Pick(rng, "btn1", 4)
	assert.False(t, ok)

	c.Set("btn1", []Point{{X: 10, Y: 10}, {X: 50, Y: 50}})
	for i := 0; i < 200; i++ {
		p, ok := c.Pick(rng, "btn1", 4)
		require.True(t, ok)
		near10 := p.X >= 6 && p.X <= 14 && p.Y >= 6 && p.Y <= 14
		near50 := p.X >= 46 && p.X <= 54 && p.Y >= 46 && p.Y <= 54
		assert.True(t, near10 || near50, "%+v", p)
	}

	p, _ := c.Pick(rng, "btn1", 0)
	assert.Contains(t, []Point{{X: 10, Y: 10}, {X: 50, Y: 50}}, p)

	c.Set("btn1", nil)
	assert.Empty(t, c.Targets())
}

func TestCalibration_Persisted(t *testing.T) {
	s, err := sqlitestore.Open(":memory:", 50)
	require.NoError(t, err)
	defer s.Close()

	c := NewCalibration()
	pts := []Point{{X: 1, Y: 2}, {X: 3, Y: 4}}
	require.NoError(t, SaveCalibration(t.Context(), s, c, "btn1", pts))
	assert.Equal(t, pts, c.Points("btn1"))

	loaded, err := LoadCalibration(t.Context(), s, "btn1", "btn2")
	require.NoError(t, err)
	assert.Equal(t, pts, loaded.Points("btn1"))
	assert.Empty(t, loaded.Points("btn2"))
}

func TestPaced_WaitsForInterval(t *testing.T) {
	dry := NewDryRunExecutor()
	p := NewPaced(dry, 30*time.Millisecond)

	start := time.Now()
	_, err := p.Execute(t.Context(), Click(store.ClickBet, "btn1"))
	require.NoError(t, err)
	_, err = p.Execute(t.Context(), Click(store.ClickBet, "btn1"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Len(t, dry.Executed(), 2)
}

func TestPaced_ContextCancelledWhileWaiting(t *testing.T) {
	dry := NewDryRunExecutor()
	p := NewPaced(dry, time.Hour)
	_, err := p.Execute(t.Context(), Click(store.ClickBet, "btn1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Execute(ctx, Click(store.ClickBet, "btn1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, dry.Executed(), 1)
}

func TestPacer_Ready(t *testing.T) {
	p := NewPacer(time.Second)
	t0 := time.Unix(1000, 0)
	ok, _ := p.Ready(t0)
	assert.True(t, ok)
	p.Mark(t0)
	ok, wait := p.Ready(t0.Add(300 * time.Millisecond))
	assert.False(t, ok)
	assert.Equal(t, 700*time.Millisecond, wait)
	ok, _ = p.Ready(t0.Add(time.Second))
	assert.True(t, ok)
	p.Reset()
	ok, _ = p.Ready(t0)
	assert.True(t, ok)
}
