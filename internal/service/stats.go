package service

import (
	"context"

	"chat_backend/internal/chatroom"
	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type StatsService interface {
	RoomStats(ctx context.Context, alias, roomName string) (*domain.RoomStats, error)
}

type statsService struct {
	rooms *roomRegistry
	log   logger.Logger
}

func newStatsService(rooms *roomRegistry, log logger.Logger) StatsService {
	return &statsService{
		rooms: rooms,
		log:   log,
	}
}

func (s *statsService) RoomStats(ctx context.Context, alias, roomName string) (*domain.RoomStats, error) {
	var stats *domain.RoomStats
	err := s.rooms.read(roomName, func(room *chatroom.ChatRoom) error {
		if !room.CanAccess(alias) {
			return apperrors.ErrForbidden
		}

		stats = &domain.RoomStats{
			RoomName:      room.Name(),
			Members:       len(room.Members()),
			Messages:      room.NumMessages(),
			MetadataDirty: room.Dirty(),
		}
		page := room.GetMessages(alias, chatroom.AllMessages, true)
		for _, m := range page.Messages {
			if m.Dirty() {
				stats.PendingMessages++
			}
			if seq := m.Properties().SequenceNumber(); seq > stats.LastSequenceNum {
				stats.LastSequenceNum = seq
			}
		}
		if n := len(page.Messages); n > 0 {
			oldest := page.Messages[0].Properties().SentTime()
			newest := page.Messages[n-1].Properties().SentTime()
			stats.OldestSentTime = &oldest
			stats.NewestSentTime = &newest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
