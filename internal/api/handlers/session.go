package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
	"github.com/Kamin0/CBT-OnlineSystem/internal/service"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/logger"
)

type SessionHandler struct {
	engine *service.Engine
}

func NewSessionHandler(engine *service.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

// CreateSession 세션 등록 (server 역할)
// POST /session
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	session, err := h.engine.CreateSession(c.Request.Context(), req.ServerAddress)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid server address",
			})
			return
		}

		logger.Error("Failed to create session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create session",
		})
		return
	}

	c.JSON(http.StatusOK, session)
}

// RequestPlacement 스킬 거리 기반 세션 배치 (client 역할)
// GET /session/:username
func (h *SessionHandler) RequestPlacement(c *gin.Context) {
	username := c.Param("username")

	placement, err := h.engine.RequestPlacement(c.Request.Context(), username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid username",
			})
		case errors.Is(err, service.ErrNoSessionAvailable):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "No session available",
			})
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Session not found",
			})
		default:
			logger.Error("Failed to place player", "username", username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to place player",
			})
		}
		return
	}

	c.JSON(http.StatusOK, placement)
}

// JoinSession 세션 참가 확정 (client 역할)
// POST /connect
func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req models.JoinSessionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	result, err := h.engine.Join(c.Request.Context(), req.SessionID, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid username",
			})
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Session not found",
			})
		default:
			logger.Error("Failed to join session",
				"sessionId", req.SessionID,
				"username", req.Username,
				"error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to join session",
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// RemoveSession 세션 제거 (server 역할)
// DELETE /session/:sessionId
func (h *SessionHandler) RemoveSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	if err := h.engine.RemoveSession(c.Request.Context(), sessionID); err != nil {
		logger.Error("Failed to remove session", "sessionId", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to remove session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Session removed successfully",
	})
}
