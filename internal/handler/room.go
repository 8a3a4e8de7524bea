package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/domain"
	"chat_backend/internal/service"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type RoomHandler struct {
	roomService service.RoomService
	log         logger.Logger
}

func NewRoomHandler(roomService service.RoomService, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		log:         log,
	}
}

type CreateRoomRequest struct {
	Name    string          `json:"room_name" binding:"required"`
	Type    domain.RoomType `json:"room_type"`
	Members []string        `json:"member_list"`
}

type MemberRequest struct {
	Alias string `json:"alias" binding:"required"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), currentAlias(c), req.Name, req.Members, req.Type)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// List returns every tracked room, or the rooms of one member or owner
// when ?member= or ?owner= is given.
func (h *RoomHandler) List(c *gin.Context) {
	var (
		rooms []domain.RoomSnapshot
		err   error
	)
	switch member, owner := c.Query("member"), c.Query("owner"); {
	case member != "" && owner != "":
		fail(c, apperrors.NewAPIError("use either member or owner, not both", http.StatusBadRequest))
		return
	case member != "":
		rooms, err = h.roomService.FindByMember(c.Request.Context(), member)
	case owner != "":
		rooms, err = h.roomService.FindByOwner(c.Request.Context(), owner)
	default:
		rooms, err = h.roomService.List(c.Request.Context())
	}
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.roomService.Get(c.Request.Context(), currentAlias(c), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Delete(c *gin.Context) {
	if err := h.roomService.Delete(c.Request.Context(), currentAlias(c), c.Param("name")); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Room removed"})
}

func (h *RoomHandler) AddMember(c *gin.Context) {
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.AddMember(c.Request.Context(), currentAlias(c), c.Param("name"), req.Alias)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) RemoveMember(c *gin.Context) {
	room, err := h.roomService.RemoveMember(c.Request.Context(), currentAlias(c), c.Param("name"), c.Param("alias"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}
