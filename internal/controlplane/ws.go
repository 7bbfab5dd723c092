package controlplane

import (
	"net/http"
	"time"

	"github.com/betbot/aviatorbot/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	snapshotBuffer = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 控制面只监听本地地址
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS 连接后先推送一次当前快照，之后每次状态变化推送一次
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade 失败: %v", err)
		return
	}
	updates, unsubscribe := s.ctrl.Subscribe(snapshotBuffer)

	s.wsWG.Add(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		readPump(conn)
	}()
	go func() {
		defer s.wsWG.Done()
		defer unsubscribe()
		defer conn.Close()
		s.writePump(conn, updates, done)
	}()
}

// readPump 只用于处理 pong / close，客户端消息被丢弃
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("websocket 读取结束: %v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, updates <-chan tracker.Snapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := writeJSON(conn, s.ctrl.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-s.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeJSON(conn, snap); err != nil {
				log.Debugf("websocket 写入失败: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
