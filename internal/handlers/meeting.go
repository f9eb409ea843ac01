package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/coordinator"
	"github.com/thereayou/meetlite/internal/handlers/dto"
	"github.com/thereayou/meetlite/internal/middleware"
	"github.com/thereayou/meetlite/internal/models"
	ws "github.com/thereayou/meetlite/internal/websocket"
	"github.com/thereayou/meetlite/pkg/roomcode"
)

type MeetingHandler struct {
	coord    *coordinator.Coordinator
	hub      *ws.Hub
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewMeetingHandler(coord *coordinator.Coordinator, hub *ws.Hub, rdb *redis.Client, cacheTTL time.Duration) *MeetingHandler {
	return &MeetingHandler{coord: coord, hub: hub, redis: rdb, cacheTTL: cacheTTL}
}

// CreateMeeting создает встречу в статусе scheduled
func (h *MeetingHandler) CreateMeeting(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Title              string                  `json:"title" binding:"required"`
		Description        string                  `json:"description"`
		ScheduledStartTime *time.Time              `json:"scheduled_start_time"`
		Settings           *models.MeetingSettings `json:"settings"`
		RoomPassword       string                  `json:"room_password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meeting, err := h.coord.CreateMeeting(c.Request.Context(), coordinator.CreateMeetingInput{
		Title:              req.Title,
		Description:        req.Description,
		HostUserID:         userID,
		ScheduledStartTime: req.ScheduledStartTime,
		Settings:           req.Settings,
		RoomPassword:       req.RoomPassword,
	})
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMeetingResponse(meeting))
}

// GetJoinInfo — публичная витрина встречи (без авторизации). Ответ короткое
// время живет в Redis: страницу входа дергают чаще, чем меняется встреча.
func (h *MeetingHandler) GetJoinInfo(c *gin.Context) {
	code := roomcode.Normalize(c.Param("code"))
	if !roomcode.Valid(code) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}

	cacheKey := "joininfo:" + code
	if h.redis != nil {
		if cached, err := h.redis.Get(c.Request.Context(), cacheKey).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		}
	}

	info, err := h.coord.GetJoinInfo(c.Request.Context(), code)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	if h.redis != nil {
		if raw, err := json.Marshal(info); err == nil {
			h.redis.Set(context.Background(), cacheKey, raw, h.cacheTTL)
		}
	}

	c.JSON(http.StatusOK, info)
}

// JoinMeeting — допуск через REST; живое соединение подключается отдельно
// через /ws
func (h *MeetingHandler) JoinMeeting(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	code := roomcode.Normalize(c.Param("code"))

	var req struct {
		DisplayName  string `json:"display_name" binding:"required"`
		Email        string `json:"email"`
		RoomPassword string `json:"room_password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.coord.Join(c.Request.Context(), code, userID, req.DisplayName, req.Email, req.RoomPassword)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JoinResponse{
		Meeting:          dto.NewMeetingResponse(result.Meeting),
		RoomCode:         code,
		ParticipantCount: result.ActiveCount,
		AlreadyActive:    result.AlreadyActive,
	})
}

// LeaveMeeting помечает выход участника
func (h *MeetingHandler) LeaveMeeting(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	code := roomcode.Normalize(c.Param("code"))

	if err := h.coord.Leave(c.Request.Context(), code, userID); err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left meeting"})
}

// EndMeeting — закрытие встречи, доступно только хосту
func (h *MeetingHandler) EndMeeting(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	code := roomcode.Normalize(c.Param("code"))

	if err := h.coord.End(c.Request.Context(), code, userID); err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "meeting ended"})
}

// UpdateSettings обновляет настройки встречи (только хост)
func (h *MeetingHandler) UpdateSettings(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	code := roomcode.Normalize(c.Param("code"))

	var req models.MeetingSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.coord.UpdateSettings(c.Request.Context(), code, userID, req); err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "settings updated"})
}

// RoomStats — счетчики соединений по комнатам плюс число активных встреч
// в хранилище, без персональных данных
func (h *MeetingHandler) RoomStats(c *gin.Context) {
	active, err := h.coord.ActiveMeetings(c.Request.Context())
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active_meetings": len(active),
		"rooms":           h.hub.RoomStats(),
	})
}

// respondCoordinatorError переводит таксономию координатора в HTTP-статусы
func respondCoordinatorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, coordinator.ErrMeetingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, coordinator.ErrMeetingEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, coordinator.ErrWrongPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, coordinator.ErrRoomFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, coordinator.ErrForbidden), errors.Is(err, coordinator.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, coordinator.ErrChatDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, coordinator.ErrUnavailable), errors.Is(err, coordinator.ErrAllocationExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
