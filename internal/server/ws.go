package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getcharzp/go-maskkit/internal/logger"
	"github.com/getcharzp/go-maskkit/sam"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HoverMessage 悬停解码消息
//
// 只给出 x/y 时视为单个前景点；同时给出 clicks 时以 clicks 为准
type HoverMessage struct {
	X      *float32    `json:"x,omitempty"`
	Y      *float32    `json:"y,omitempty"`
	Clicks []sam.Click `json:"clicks,omitempty"`
}

func (m *HoverMessage) clicks() []sam.Click {
	if len(m.Clicks) > 0 {
		return m.Clicks
	}
	if m.X != nil && m.Y != nil {
		return []sam.Click{{X: *m.X, Y: *m.Y, Label: sam.LabelForeground}}
	}
	return nil
}

// HoverReply 悬停解码结果，出错时只有 error
type HoverReply struct {
	*MaskResponse
	Error string `json:"error,omitempty"`
}

// hover 悬停解码 WebSocket
//
// 距离上一次解码不足 session.hover_throttle 的消息会被丢弃，不做排队
func (s *Server) hover(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.opts.Sessions.Get(id)
	if err != nil {
		fail(c, http.StatusNotFound, "会话不存在", err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(64 * 1024)
	// 清除 http.Server 读写超时留下的截止时间
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	throttle := s.cfg.Session.HoverThrottle
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log().Debug("websocket closed", zap.String("session", id), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			_ = conn.WriteJSON(HoverReply{Error: "unsupported message type"})
			continue
		}

		// 会话可能已被删除或回收
		if sess, err = s.opts.Sessions.Get(id); err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session not found"))
			return
		}

		// 无效或空消息不占用节流窗口
		var msg HoverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(HoverReply{Error: "invalid message: " + err.Error()})
			continue
		}
		clicks := msg.clicks()
		if len(clicks) == 0 {
			continue
		}
		if !sess.AllowHover(time.Now(), throttle) {
			s.opts.Metrics.Dropped.Inc()
			continue
		}

		resp, err := s.predict(sess, clicks, false)
		if err != nil {
			if errors.Is(err, sam.ErrMissingInput) {
				continue
			}
			_ = conn.WriteJSON(HoverReply{Error: err.Error()})
			continue
		}
		if err := conn.WriteJSON(HoverReply{MaskResponse: resp}); err != nil {
			return
		}
	}
}
