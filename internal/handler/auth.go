package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/service"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type AuthHandler struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthHandler(authService service.AuthService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type AliasRequest struct {
	Alias string `json:"alias" binding:"required"`
}

// Register creates a user and returns its first token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req AliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.authService.Register(c.Request.Context(), req.Alias)
	if err != nil {
		h.log.Warn("Registration failed", "error", err, "alias", req.Alias)
		fail(c, err)
		return
	}

	h.log.Info("User registered successfully", "alias", response.User.Alias)
	c.JSON(http.StatusCreated, response)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req AliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Alias)
	if err != nil {
		h.log.Warn("Login failed", "error", err, "alias", req.Alias)
		fail(c, apperrors.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, response)
}
