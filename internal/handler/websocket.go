package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat_backend/internal/chatroom"
	"chat_backend/internal/domain"
	"chat_backend/internal/service"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxFrameSize   = 64 * 1024
	frameTypeHistory = "history"
	frameTypeAck     = "ack"
	frameTypeError   = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewWebSocketHandler(chatService service.ChatService, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		log:         log,
	}
}

// inboundFrame is one message posted by the client.
type inboundFrame struct {
	Text string             `json:"text"`
	To   string             `json:"to"`
	Type domain.MessageType `json:"type"`
}

type outboundFrame struct {
	Type     string                  `json:"type"`
	Message  *domain.MessageDocument `json:"message,omitempty"`
	Messages *service.MessagesResult `json:"messages,omitempty"`
	Stored   bool                    `json:"stored,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// HandleChat upgrades the request, sends the room history, then turns every
// inbound frame into a send and answers it with an ack or error frame.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	alias := currentAlias(c)
	roomName := c.Param("name")

	history, err := h.chatService.Messages(c.Request.Context(), alias, roomName, chatroom.AllMessages, false)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxFrameSize)

	log := h.log.With("room", roomName, "alias", alias)
	log.Debug("WebSocket connected")

	if err := h.write(conn, outboundFrame{Type: frameTypeHistory, Messages: history}); err != nil {
		log.Warn("Failed to send history", "error", err)
		return
	}

	for {
		var in inboundFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("WebSocket read failed", "error", err)
			}
			break
		}

		out := h.send(c, alias, roomName, in)
		if err := h.write(conn, out); err != nil {
			log.Warn("Failed to write frame", "error", err)
			break
		}
	}

	log.Debug("WebSocket closed")
}

func (h *WebSocketHandler) send(c *gin.Context, alias, roomName string, in inboundFrame) outboundFrame {
	message, err := h.chatService.Send(c.Request.Context(), alias, roomName, service.SendRequest{
		Text:   in.Text,
		ToUser: in.To,
		Type:   in.Type,
	})
	switch {
	case err == nil:
		return outboundFrame{Type: frameTypeAck, Message: message, Stored: true}
	case message != nil && isStorageError(err):
		return outboundFrame{Type: frameTypeAck, Message: message, Stored: false, Error: err.Error()}
	default:
		status := apperrors.HTTPStatusFromError(err)
		return outboundFrame{Type: frameTypeError, Error: http.StatusText(status) + ": " + err.Error()}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, frame outboundFrame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
