package handler

import (
	"github.com/gin-gonic/gin"

	"chat_backend/internal/config"
	"chat_backend/internal/middleware"
	"chat_backend/pkg/logger"
)

// NewRouter mounts every route. rateLimit may be nil when limiting is off.
func NewRouter(
	handlers *Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	limit := func(c *gin.Context) { c.Next() }
	if rateLimitMiddleware != nil {
		limit = rateLimitMiddleware.Limit()
	}

	router.GET("/health", handlers.Health.Check)
	router.GET("/server-info", handlers.Health.ServerInfo)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", limit, handlers.Auth.Register)
		v1.POST("/auth/login", limit, handlers.Auth.Login)

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			users := protected.Group("/users")
			{
				users.GET("", handlers.User.List)
				users.GET("/me", handlers.User.GetMe)
			}

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", handlers.Room.Create)
				rooms.GET("", handlers.Room.List)
				rooms.GET("/:name", handlers.Room.Get)
				rooms.DELETE("/:name", handlers.Room.Delete)
				rooms.POST("/:name/members", handlers.Room.AddMember)
				rooms.DELETE("/:name/members/:alias", handlers.Room.RemoveMember)
				rooms.GET("/:name/stats", handlers.Stats.GetRoomStats)
				rooms.GET("/:name/events", handlers.Stats.GetRoomEvents)

				rooms.POST("/:name/messages", limit, handlers.Chat.SendMessage)
				rooms.GET("/:name/messages", handlers.Chat.GetMessages)
				rooms.GET("/:name/messages/next", handlers.Chat.Next)
				rooms.GET("/:name/messages/search", handlers.Chat.Search)
			}
		}
	}

	ws := router.Group("/ws")
	ws.Use(authMiddleware.RequireAuth())
	{
		ws.GET("/rooms/:name", handlers.WebSocket.HandleChat)
	}

	return router
}
