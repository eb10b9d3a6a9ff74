package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kamin0/CBT-OnlineSystem/internal/websocket"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/logger"
)

type WebSocketHandler struct {
	hub *websocket.Hub
}

func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket 세션 이벤트 피드 구독 (인증된 연결만)
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	username := c.GetString("username")

	if err := websocket.ServeWS(h.hub, c.Writer, c.Request, username); err != nil {
		logger.Error("Failed to upgrade websocket", "username", username, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to upgrade connection",
		})
	}
}
