package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/service"
	"chat_backend/pkg/logger"
)

type StatsHandler struct {
	statsService service.StatsService
	roomService  service.RoomService
	log          logger.Logger
}

func NewStatsHandler(statsService service.StatsService, roomService service.RoomService, log logger.Logger) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		roomService:  roomService,
		log:          log,
	}
}

func (h *StatsHandler) GetRoomStats(c *gin.Context) {
	stats, err := h.statsService.RoomStats(c.Request.Context(), currentAlias(c), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRoomEvents returns the room's audit trail, oldest first. ?limit= caps
// the result.
func (h *StatsHandler) GetRoomEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events, err := h.roomService.Events(c.Request.Context(), currentAlias(c), c.Param("name"), limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
