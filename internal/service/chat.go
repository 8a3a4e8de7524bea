package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chat_backend/internal/chatroom"
	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type SendRequest struct {
	Text   string
	ToUser string
	Type   domain.MessageType
}

// MessagesResult is a copy of a room page that is safe to use after the
// room lock is released.
type MessagesResult struct {
	Texts    []string                 `json:"messages"`
	Messages []domain.MessageDocument `json:"message_objects,omitempty"`
	Total    int                      `json:"total"`
}

type ChatService interface {
	// Send appends a message and persists the room. When the message is
	// accepted but could not be stored yet, both the message and the error
	// are returned.
	Send(ctx context.Context, alias, roomName string, req SendRequest) (*domain.MessageDocument, error)
	Messages(ctx context.Context, alias, roomName string, count int, includeObjects bool) (*MessagesResult, error)
	Next(ctx context.Context, alias, roomName string) (*domain.MessageDocument, error)
	Find(ctx context.Context, alias, roomName, text string) (*domain.MessageDocument, error)
}

type chatService struct {
	rooms     *roomRegistry
	opTimeout time.Duration
	log       logger.Logger
}

func newChatService(rooms *roomRegistry, opTimeout time.Duration, log logger.Logger) ChatService {
	return &chatService{
		rooms:     rooms,
		opTimeout: opTimeout,
		log:       log,
	}
}

func (s *chatService) Send(ctx context.Context, alias, roomName string, req SendRequest) (*domain.MessageDocument, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("message text is required: %w", apperrors.ErrBadRequest)
	}
	if !utf8.ValidString(req.Text) || strings.ContainsRune(req.Text, 0) {
		return nil, fmt.Errorf("message text must be valid UTF-8 without NUL bytes: %w", apperrors.ErrBadRequest)
	}
	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageTypeUser
	}
	if !msgType.Valid() {
		return nil, fmt.Errorf("unknown message type %q: %w", msgType, apperrors.ErrBadRequest)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		doc     *domain.MessageDocument
		sendErr error
	)
	err := s.rooms.write(roomName, func(room *chatroom.ChatRoom) error {
		if !room.CanAccess(alias) {
			return apperrors.ErrForbidden
		}

		now := time.Now()
		props := domain.NewMessageProperties(roomName, req.ToUser, alias, msgType, now, now)
		ok, err := room.Send(ctx, req.Text, alias, props)
		if !ok {
			return fmt.Errorf("message rejected: %w", apperrors.ErrBadRequest)
		}
		latest := room.Latest().Document()
		doc = &latest
		sendErr = err
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sendErr != nil {
		s.log.Warn("Message accepted but not yet stored", "error", sendErr, "room", roomName, "from", alias)
	}
	return doc, sendErr
}

func (s *chatService) Messages(ctx context.Context, alias, roomName string, count int, includeObjects bool) (*MessagesResult, error) {
	var result *MessagesResult
	err := s.rooms.read(roomName, func(room *chatroom.ChatRoom) error {
		if !room.CanAccess(alias) {
			return apperrors.ErrForbidden
		}
		page := room.GetMessages(alias, count, includeObjects)
		result = &MessagesResult{Texts: page.Texts, Total: page.Total}
		if includeObjects {
			result.Messages = make([]domain.MessageDocument, 0, len(page.Messages))
			for _, m := range page.Messages {
				result.Messages = append(result.Messages, m.Document())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *chatService) Next(ctx context.Context, alias, roomName string) (*domain.MessageDocument, error) {
	return s.readMessage(roomName, alias, func(room *chatroom.ChatRoom) *domain.ChatMessage {
		return room.Receive()
	})
}

func (s *chatService) Find(ctx context.Context, alias, roomName, text string) (*domain.MessageDocument, error) {
	return s.readMessage(roomName, alias, func(room *chatroom.ChatRoom) *domain.ChatMessage {
		return room.Find(text)
	})
}

func (s *chatService) readMessage(roomName, alias string, pick func(*chatroom.ChatRoom) *domain.ChatMessage) (*domain.MessageDocument, error) {
	var doc *domain.MessageDocument
	err := s.rooms.read(roomName, func(room *chatroom.ChatRoom) error {
		if !room.CanAccess(alias) {
			return apperrors.ErrForbidden
		}
		m := pick(room)
		if m == nil {
			return fmt.Errorf("no matching message: %w", apperrors.ErrNotFound)
		}
		d := m.Document()
		doc = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
