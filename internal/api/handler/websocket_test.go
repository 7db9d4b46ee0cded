package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/creditflow_server/internal/pkg/jwt"
	"github.com/qs3c/creditflow_server/internal/pkg/pubsub"
	"github.com/qs3c/creditflow_server/internal/pkg/ws"
)

const testWSSecret = "ws-test-secret"

func TestWebSocketHandler_RejectsMissingOrInvalidToken(t *testing.T) {
	h := NewWebSocketHandler(ws.NewHub(nil), testWSSecret, nil, nil)
	router := gin.New()
	router.GET("/ws", h.Handle)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ws?token=bogus", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebSocketHandler_ForwardCreditsUpdate(t *testing.T) {
	hub := ws.NewHub(nil)
	h := NewWebSocketHandler(hub, testWSSecret, []string{"*"}, nil)
	router := gin.New()
	router.GET("/ws", h.Handle)

	server := httptest.NewServer(router)
	defer server.Close()

	token, err := jwt.GenerateToken(42, testWSSecret, 1)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline(42) }, 2*time.Second, 10*time.Millisecond)

	remaining := 5
	h.Forward(&pubsub.Message{Type: pubsub.TypeCreditsUpdated, UserID: 42, CreditsRemaining: &remaining, Tier: "free"})
	// 其他用户的事件不会送达
	h.Forward(&pubsub.Message{Type: pubsub.TypeCreditsUpdated, UserID: 7, CreditsRemaining: &remaining})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, pubsub.TypeCreditsUpdated, msg.Type)
	assert.Equal(t, float64(5), msg.Data["credits_remaining"])
	assert.Equal(t, "free", msg.Data["tier"])

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.IsOnline(42) }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	h := NewWebSocketHandler(ws.NewHub(nil), testWSSecret, []string{"https://app.example.com"}, nil)

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, h.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.upgrader.CheckOrigin(req))
}
