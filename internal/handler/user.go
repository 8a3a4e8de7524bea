package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/service"
	"chat_backend/pkg/logger"
)

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

func (h *UserHandler) List(c *gin.Context) {
	aliases, err := h.userService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": aliases})
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), currentAlias(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
