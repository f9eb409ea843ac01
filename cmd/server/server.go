package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/thereayou/meetlite/internal/config"
	"github.com/thereayou/meetlite/internal/coordinator"
	"github.com/thereayou/meetlite/internal/database"
	"github.com/thereayou/meetlite/internal/handlers"
	ws "github.com/thereayou/meetlite/internal/websocket"
	"github.com/thereayou/meetlite/pkg/auth"
)

type Server struct {
	Router      *gin.Engine
	Config      *config.Config
	DB          *database.Database
	Redis       *redis.Client
	Hub         *ws.Hub
	Coordinator *coordinator.Coordinator
	JWTManager  *auth.JWTManager

	sweepCancel context.CancelFunc
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	cfg := config.Load()

	dbConn := &database.Database{}
	if err := dbConn.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	hub := ws.NewHub()
	coord := coordinator.New(dbConn, hub, cfg.StoreTimeout, cfg.DefaultMaxParticipants)

	// Обрыв websocket-соединения превращается в Leave без участия клиента
	hub.SetLeaveHandler(func(roomCode string, userID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := coord.Leave(ctx, roomCode, userID); err != nil {
			log.Printf("leave on disconnect failed for %s in %s: %v", userID, roomCode, err)
		}
	})

	meetingH := handlers.NewMeetingHandler(coord, hub, rdb, cfg.JoinInfoCacheTTL)
	chatH := handlers.NewChatHandler(coord)
	eventH := handlers.NewMeetingEventHandler(coord)
	wsH := handlers.NewWebSocketHandler(hub, eventH)

	router := gin.Default()
	APIEndpoints(router, meetingH, chatH, wsH, jwtMgr, rdb)

	return &Server{
		Router:      router,
		Config:      cfg,
		DB:          dbConn,
		Redis:       rdb,
		Hub:         hub,
		Coordinator: coord,
		JWTManager:  jwtMgr,
	}
}

func (s *Server) Run() {
	go s.Hub.Run()

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	go s.Coordinator.RunIdleSweep(sweepCtx, s.Config.SweepInterval, s.Config.IdleGrace)

	log.Printf("Server starting on port %s", s.Config.Port)
	if err := s.Router.Run(":" + s.Config.Port); err != nil {
		log.Fatalf("Server run error: %v", err)
	}
}

func (s *Server) Stop() {
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	s.Hub.Stop()
}
