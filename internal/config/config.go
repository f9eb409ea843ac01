package config

import (
	"os"
	"strconv"
	"time"
)

// Config собирается из переменных окружения (.env подхватывает godotenv в main)
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTTTL      time.Duration

	// Сколько пустая активная встреча живет до закрытия свипером
	IdleGrace     time.Duration
	SweepInterval time.Duration

	// Таймаут на один поход в хранилище
	StoreTimeout time.Duration

	DefaultMaxParticipants int
	JoinInfoCacheTTL       time.Duration
}

func Load() *Config {
	return &Config{
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		JWTTTL:                 getDuration("JWT_TTL", 24*time.Hour),
		IdleGrace:              getDuration("MEETING_IDLE_GRACE", 2*time.Minute),
		SweepInterval:          getDuration("MEETING_SWEEP_INTERVAL", 30*time.Second),
		StoreTimeout:           getDuration("STORE_TIMEOUT", 3*time.Second),
		DefaultMaxParticipants: getInt("MEETING_MAX_PARTICIPANTS", 6),
		JoinInfoCacheTTL:       getDuration("JOIN_INFO_CACHE_TTL", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
