package service

import (
	"context"
	"time"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

const defaultAuditLimit = 100

type AuditService interface {
	// LogEvent records an event. Failures are logged, never returned, so a
	// broken audit store cannot block room changes.
	LogEvent(ctx context.Context, actor, roomName, eventType string, payload map[string]any)
	RoomEvents(ctx context.Context, roomName string, limit int) ([]domain.AuditEvent, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor, roomName, eventType string, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any)
	}

	event := &domain.AuditEvent{
		EventTime: time.Now(),
		Actor:     actor,
		RoomName:  roomName,
		EventType: eventType,
		Payload:   payload,
	}

	if err := s.auditRepo.CreateLog(ctx, event); err != nil {
		s.log.Warn("Failed to record audit event", "error", err, "room", roomName, "event", eventType)
	}
}

func (s *auditService) RoomEvents(ctx context.Context, roomName string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 || limit > defaultAuditLimit {
		limit = defaultAuditLimit
	}
	return s.auditRepo.ListByRoom(ctx, roomName, limit)
}
