package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/config"
)

type HealthHandler struct {
	roomList        string
	storageDriver   string
	sequenceBackend string
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		roomList:        cfg.Chat.RoomListName,
		storageDriver:   cfg.Chat.StorageDriver,
		sequenceBackend: cfg.Chat.SequenceBackend,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "chat-backend",
	})
}

// ServerInfo describes how this instance stores rooms.
func (h *HealthHandler) ServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"room_list":        h.roomList,
		"storage_driver":   h.storageDriver,
		"sequence_backend": h.sequenceBackend,
		"api_base":         "/api/v1",
	})
}
