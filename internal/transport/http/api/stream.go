package apihttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bracket/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// 无新事件时向 SSE 客户端发注释行保活。
	sseHeartbeat = 15 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 跨域已由外层 CORS 中间件处理。
		return true
	},
}

// handleLogsStream 以 Server-Sent Events 推送 journal：先回放最近若干条，再实时跟进。
func (r *Router) handleLogsStream(c *gin.Context) {
	j := r.journal()
	if j == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal 未启用"})
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	sub := j.Subscribe()
	defer j.Unsubscribe(sub)
	logger.Debugf("[api] sse client connected ip=%s", c.ClientIP())

	heartbeat := time.NewTimer(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			logger.Debugf("[api] sse client gone ip=%s", c.ClientIP())
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
				return
			}
			c.Writer.Flush()
			if !heartbeat.Stop() {
				select {
				case <-heartbeat.C:
				default:
				}
			}
			heartbeat.Reset(sseHeartbeat)
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
			heartbeat.Reset(sseHeartbeat)
		}
	}
}

// handleLogsWS 与 SSE 等价的 WebSocket 通道，浏览器面板二选一即可。
func (r *Router) handleLogsWS(c *gin.Context) {
	j := r.journal()
	if j == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal 未启用"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[api] ws upgrade failed ip=%s err=%v", c.ClientIP(), err)
		return
	}
	defer conn.Close()
	logger.Debugf("[api] ws client connected ip=%s", c.ClientIP())

	sub := j.Subscribe()
	defer j.Unsubscribe(sub)

	// 读取循环只为感知断连，收到的内容一律忽略。
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					logger.Debugf("[api] ws read error ip=%s err=%v", c.ClientIP(), err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Debugf("[api] ws client gone ip=%s", c.ClientIP())
			return
		case <-c.Request.Context().Done():
			return
		case e, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
