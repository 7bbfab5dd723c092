package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"
)

// Hooks 调试服务上挂的运行时钩子，均可为 nil
type Hooks struct {
	// Status 当前 bot 状态（可 JSON 编码），挂在 /debug/aviator
	Status func() any
	// Health 返回非 nil 表示 bot 不应继续无人值守运行（熔断、OCR 停滞），/healthz 返回 503
	Health func() error
}

func newMux(h Hooks) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/aviator", func(w http.ResponseWriter, r *http.Request) {
		if h.Status == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(h.Status()); err != nil {
			logrus.WithField("module", "metrics").Warnf("编码状态失败: %v", err)
		}
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if h.Health != nil {
			if err := h.Health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartAsync 启动调试服务（非阻塞），ctx 结束时关闭。
//   - /debug/vars     expvar 计数器
//   - /debug/aviator  Hooks.Status
//   - /healthz        Hooks.Health
//   - /debug/pprof
//
// 只应监听 localhost：状态里有资金和注码。
func StartAsync(ctx context.Context, listenAddr string, h Hooks) (*http.Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &http.Server{
		Addr:              listenAddr,
		Handler:           newMux(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("module", "metrics").Errorf("metrics server 退出: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	return s, nil
}
