package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"chat_backend/internal/domain"
	"chat_backend/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, event *domain.AuditEvent) error
	// ListByRoom returns the room's events oldest first, at most limit of them.
	ListByRoom(ctx context.Context, roomName string, limit int) ([]domain.AuditEvent, error)
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, event *domain.AuditEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO chat_audit_log (event_time, actor, room_name, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		event.EventTime, event.Actor, event.RoomName, event.EventType, payload,
	).Scan(&event.ID)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "room", event.RoomName, "event", event.EventType)
		return storageError("create audit log", err)
	}

	return nil
}

func (r *auditRepository) ListByRoom(ctx context.Context, roomName string, limit int) ([]domain.AuditEvent, error) {
	query := `
		SELECT id, event_time, actor, room_name, event_type, payload
		FROM chat_audit_log
		WHERE room_name = $1
		ORDER BY id ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, roomName, limit)
	if err != nil {
		r.log.Error("Failed to list audit log", "error", err, "room", roomName)
		return nil, storageError("list audit log", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		var (
			event   domain.AuditEvent
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.EventTime, &event.Actor, &event.RoomName, &event.EventType, &payload); err != nil {
			return nil, storageError("scan audit log", err)
		}
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			r.log.Warn("Unreadable audit payload", "error", err, "id", event.ID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate audit log", err)
	}

	return events, nil
}
