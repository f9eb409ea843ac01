package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/meetlite/pkg/auth"
)

const UserIDKey = "userID"

// AuthMiddleware пускает запрос дальше только с валидным JWT из
// Authorization-заголовка. Встреч без проверенного userID не бывает.
func AuthMiddleware(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		authenticate(c, token, jwtManager, redisClient)
	}
}

// WSAuthMiddleware — та же проверка для /ws. Браузерный WebSocket-клиент
// не умеет выставлять заголовки при upgrade, поэтому токен принимается
// и query-параметром.
func WSAuthMiddleware(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			if t, err := auth.ExtractTokenFromHeader(c.Request); err == nil {
				token = t
			}
		}
		if token == "" {
			abortUnauthorized(c, "missing token")
			return
		}
		authenticate(c, token, jwtManager, redisClient)
	}
}

// authenticate — общий хвост обоих middleware: отозванность, подпись,
// разбор userID. Недоступный Redis трактуется как отозванный токен —
// закрываемся, а не пропускаем.
func authenticate(c *gin.Context, token string, jwtManager *auth.JWTManager, redisClient *redis.Client) {
	revoked, err := redisClient.Exists(c.Request.Context(), "blacklist:"+token).Result()
	if err != nil || revoked > 0 {
		abortUnauthorized(c, "token is revoked")
		return
	}

	claims, err := jwtManager.Verify(token)
	if err != nil {
		abortUnauthorized(c, "invalid token")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		abortUnauthorized(c, "invalid user id")
		return
	}

	c.Set(UserIDKey, userID)
	c.Next()
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
	c.Abort()
}
