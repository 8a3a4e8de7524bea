package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

// RoomListRepository stores room directory documents keyed by list name.
type RoomListRepository interface {
	Get(ctx context.Context, listName string) (*domain.RoomListMetadata, error)
	Exists(ctx context.Context, listName string) (bool, error)
	Insert(ctx context.Context, meta *domain.RoomListMetadata) error
	Replace(ctx context.Context, meta *domain.RoomListMetadata) error
}

type roomListRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomListRepository(db *pgxpool.Pool, log logger.Logger) RoomListRepository {
	return &roomListRepository{db: db, log: log}
}

func (r *roomListRepository) Get(ctx context.Context, listName string) (*domain.RoomListMetadata, error) {
	query := `
		SELECT list_name, create_time, modify_time, rooms_metadata
		FROM room_lists
		WHERE list_name = $1
	`

	meta := &domain.RoomListMetadata{}
	var rooms []byte
	err := r.db.QueryRow(ctx, query, listName).Scan(&meta.ListName, &meta.CreateTime, &meta.ModifyTime, &rooms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get room list", "error", err, "list", listName)
		return nil, storageError("get room list", err)
	}

	if err := json.Unmarshal(rooms, &meta.RoomsMetadata); err != nil {
		r.log.Error("Failed to decode room list metadata", "error", err, "list", listName)
		return nil, fmt.Errorf("failed to decode rooms metadata: %w", err)
	}

	return meta, nil
}

func (r *roomListRepository) Exists(ctx context.Context, listName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM room_lists WHERE list_name = $1)`, listName).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check room list existence", "error", err, "list", listName)
		return false, storageError("check room list", err)
	}
	return exists, nil
}

func (r *roomListRepository) Insert(ctx context.Context, meta *domain.RoomListMetadata) error {
	rooms, err := marshalSnapshots(meta.RoomsMetadata)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO room_lists (list_name, create_time, modify_time, rooms_metadata)
		VALUES ($1, $2, $3, $4)
	`, meta.ListName, meta.CreateTime, meta.ModifyTime, rooms)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("room list %q: %w", meta.ListName, apperrors.ErrBadRequest)
		}
		r.log.Error("Failed to insert room list", "error", err, "list", meta.ListName)
		return storageError("insert room list", err)
	}

	return nil
}

func (r *roomListRepository) Replace(ctx context.Context, meta *domain.RoomListMetadata) error {
	rooms, err := marshalSnapshots(meta.RoomsMetadata)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO room_lists (list_name, create_time, modify_time, rooms_metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (list_name) DO UPDATE
		SET create_time = EXCLUDED.create_time,
		    modify_time = EXCLUDED.modify_time,
		    rooms_metadata = EXCLUDED.rooms_metadata
	`, meta.ListName, meta.CreateTime, meta.ModifyTime, rooms)
	if err != nil {
		r.log.Error("Failed to replace room list", "error", err, "list", meta.ListName)
		return storageError("replace room list", err)
	}

	return nil
}

func marshalSnapshots(rooms []domain.RoomSnapshot) ([]byte, error) {
	if rooms == nil {
		rooms = []domain.RoomSnapshot{}
	}
	b, err := json.Marshal(rooms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rooms metadata: %w", err)
	}
	return b, nil
}
