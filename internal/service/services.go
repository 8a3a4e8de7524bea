package service

import (
	"context"
	"fmt"

	"chat_backend/internal/chatroom"
	"chat_backend/internal/config"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Room      RoomService
	Chat      ChatService
	RateLimit RateLimitService
	Audit     AuditService
	Stats     StatsService
}

// NewServices restores the configured room list and wires the services
// around it.
func NewServices(ctx context.Context, repos *repository.Repositories, cfg *config.Config, log logger.Logger) (*Services, error) {
	users := NewUserService(repos.User, log)

	backend := chatroom.Backend{
		Rooms:       repos.Room,
		Sequence:    repos.Sequence,
		Log:         log,
		MaxMessages: cfg.Chat.MaxMessages,
	}
	list, err := chatroom.LoadRoomList(ctx, cfg.Chat.RoomListName, repos.RoomList, users, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load room list %q: %w", cfg.Chat.RoomListName, err)
	}
	log.Info("Room list loaded", "list", list.Name(), "rooms", len(list.Rooms()))

	rooms := newRoomRegistry(list)
	audit := NewAuditService(repos.Audit, log)
	return &Services{
		Auth:      NewAuthService(users, cfg.JWT, log),
		User:      users,
		Room:      newRoomService(rooms, users, audit, cfg.Chat.OpTimeout, log),
		Chat:      newChatService(rooms, cfg.Chat.OpTimeout, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
		Audit:     audit,
		Stats:     newStatsService(rooms, log),
	}, nil
}
