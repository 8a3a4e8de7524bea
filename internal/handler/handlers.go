package handler

import (
	"github.com/gin-gonic/gin"

	"chat_backend/internal/config"
	"chat_backend/internal/middleware"
	"chat_backend/internal/service"
	"chat_backend/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Room      *RoomHandler
	Chat      *ChatHandler
	Stats     *StatsHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Auth:      NewAuthHandler(services.Auth, log),
		User:      NewUserHandler(services.User, log),
		Room:      NewRoomHandler(services.Room, log),
		Chat:      NewChatHandler(services.Chat, log),
		Stats:     NewStatsHandler(services.Stats, services.Room, log),
		WebSocket: NewWebSocketHandler(services.Chat, log),
	}
}

// fail hands err to middleware.ErrorHandler, which picks the status.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func currentAlias(c *gin.Context) string {
	alias, _ := middleware.Alias(c)
	return alias
}
