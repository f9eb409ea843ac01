package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/meetlite/internal/handlers"
	"github.com/thereayou/meetlite/internal/middleware"
	"github.com/thereayou/meetlite/pkg/auth"
)

func APIEndpoints(r *gin.Engine, meetingH *handlers.MeetingHandler, chatH *handlers.ChatHandler, wsH *handlers.WebSocketHandler, jwtMgr *auth.JWTManager, rdb *redis.Client) {
	// Публичная витрина встречи — без токена
	r.GET("/api/v1/meetings/:code/join-info", meetingH.GetJoinInfo)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.POST("/meetings", meetingH.CreateMeeting)
		api.POST("/meetings/:code/join", meetingH.JoinMeeting)
		api.POST("/meetings/:code/leave", meetingH.LeaveMeeting)
		api.POST("/meetings/:code/end", meetingH.EndMeeting)
		api.PATCH("/meetings/:code/settings", meetingH.UpdateSettings)
		api.GET("/meetings/:code/messages", chatH.GetMeetingMessages)
		api.POST("/meetings/:code/messages", chatH.SendMessage)
		api.GET("/stats/rooms", meetingH.RoomStats)
	}

	// Живой канал: токен приходит query-параметром
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)
}
