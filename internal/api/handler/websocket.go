package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/internal/pkg/jwt"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/pubsub"
	"github.com/qs3c/creditflow_server/internal/pkg/ws"
)

type WebSocketHandler struct {
	hub       *ws.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewWebSocketHandler allowedOrigins 为空或包含 "*" 时不校验 Origin
func NewWebSocketHandler(hub *ws.Hub, jwtSecret string, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}

	return &WebSocketHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		logger: logger.OrNop(log),
	}
}

// Handle WebSocket 连接，余额变化通过该连接推送
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := jwt.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &ws.Client{
		UserID: claims.UserID,
		Conn:   conn,
	}
	h.hub.Register(client)

	// 只读不处理，用于发现断开
	go func() {
		defer func() {
			h.hub.Unregister(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Forward 将订阅到的用户事件转发给在线连接
func (h *WebSocketHandler) Forward(msg *pubsub.Message) {
	if msg == nil || !h.hub.IsOnline(msg.UserID) {
		return
	}

	var data gin.H
	switch msg.Type {
	case pubsub.TypeCreditsUpdated:
		data = gin.H{"tier": msg.Tier}
		if msg.CreditsRemaining != nil {
			data["credits_remaining"] = *msg.CreditsRemaining
		}
	case pubsub.TypeContentUpdated:
		data = gin.H{"content_id": msg.ContentID, "result": msg.Result}
	default:
		return
	}

	if err := h.hub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: data}); err != nil {
		h.logger.Warn("forward user event failed", zap.Int64("user_id", msg.UserID), zap.Error(err))
	}
}
