package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/coordinator"
	"github.com/thereayou/meetlite/internal/handlers/dto"
	"github.com/thereayou/meetlite/internal/middleware"
	"github.com/thereayou/meetlite/pkg/roomcode"
)

type ChatHandler struct {
	coord *coordinator.Coordinator
}

func NewChatHandler(coord *coordinator.Coordinator) *ChatHandler {
	return &ChatHandler{coord: coord}
}

// GetMeetingMessages — история чата встречи. Доступна участникам и после
// закрытия встречи; ?since=<sequence> отдает только новые сообщения.
func (h *ChatHandler) GetMeetingMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	code := roomcode.Normalize(c.Param("code"))

	var since int64
	if s := c.Query("since"); s != "" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil && parsed >= 0 {
			since = parsed
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	messages, err := h.coord.History(c.Request.Context(), code, userID, since, limit)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	result := make([]dto.MessageResponse, len(messages))
	for i := range messages {
		result[i] = dto.NewMessageResponse(&messages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": result,
		"has_more": len(messages) == limit,
	})
}

// SendMessage отправляет сообщение через HTTP (альтернатива WebSocket)
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	code := roomcode.Normalize(c.Param("code"))

	var req struct {
		Body string `json:"body" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.coord.SendChat(c.Request.Context(), code, userID, req.Body)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMessageResponse(msg))
}
