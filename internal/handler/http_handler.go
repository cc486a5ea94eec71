package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Redennison/CampusCollab/relay-service/internal/auth"
	"github.com/Redennison/CampusCollab/relay-service/internal/service"
	"github.com/Redennison/CampusCollab/relay-service/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type HTTPHandler struct {
	history  service.HistoryService
	verifier auth.TokenVerifier
}

func NewHTTPHandler(history service.HistoryService, verifier auth.TokenVerifier) *HTTPHandler {
	return &HTTPHandler{
		history:  history,
		verifier: verifier,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, ws *WSHandler) {
	api := r.Group("/api/v1")
	api.Use(RequireAuth(h.verifier))
	{
		api.GET("/rooms/:room_id/messages", h.GetMessages)
	}

	r.GET("/relay/ws", ws.HandleWebSocket)
	r.GET("/health", h.HealthCheck)
}

// GetMessages serves the history read path: one ordered page of a room's
// messages, oldest first by default.
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		response.BadRequest(c, "room_id is required")
		return
	}

	cursor := c.Query("cursor")
	direction := c.DefaultQuery("direction", "forward")

	if direction != "backward" && direction != "forward" {
		response.BadRequest(c, "direction must be 'backward' or 'forward'")
		return
	}

	limit := defaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsedLimit
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	page, err := h.history.GetHistory(c.Request.Context(), roomID, cursor, limit, direction)
	if err != nil {
		response.InternalError(c, "failed to get chat history")
		return
	}

	response.Success(c, page)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "ok",
	})
}
