package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/chatroom"
	"chat_backend/internal/domain"
	"chat_backend/internal/service"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

type SendMessageRequest struct {
	Text string             `json:"text" binding:"required"`
	To   string             `json:"to"`
	Type domain.MessageType `json:"type"`
}

// GetMessages returns the room log oldest first. count defaults to the
// whole log; objects=true adds the full message documents.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	count := chatroom.AllMessages
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
			return
		}
		count = n
	}
	includeObjects, _ := strconv.ParseBool(c.DefaultQuery("objects", "false"))

	page, err := h.chatService.Messages(c.Request.Context(), currentAlias(c), c.Param("name"), count, includeObjects)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.chatService.Send(c.Request.Context(), currentAlias(c), c.Param("name"), service.SendRequest{
		Text:   req.Text,
		ToUser: req.To,
		Type:   req.Type,
	})
	if err != nil {
		if message != nil && isStorageError(err) {
			// in the room log, stored on the next successful persist
			c.JSON(http.StatusAccepted, gin.H{"message": message, "stored": false})
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": message, "stored": true})
}

func (h *ChatHandler) Next(c *gin.Context) {
	message, err := h.chatService.Next(c.Request.Context(), currentAlias(c), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

func (h *ChatHandler) Search(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	message, err := h.chatService.Find(c.Request.Context(), currentAlias(c), c.Param("name"), text)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

func isStorageError(err error) bool {
	return errors.Is(err, apperrors.ErrStorageUnavailable) || errors.Is(err, apperrors.ErrSequenceAllocation)
}
