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

// RoomRepository stores one room's metadata document and its message documents.
type RoomRepository interface {
	Exists(ctx context.Context, roomName string) (bool, error)
	GetMetadata(ctx context.Context, roomName string) (*domain.RoomMetadata, error)
	InsertMetadata(ctx context.Context, meta *domain.RoomMetadata) error
	ReplaceMetadata(ctx context.Context, meta *domain.RoomMetadata) error
	// InsertMessage stores a new message document under roomName and returns
	// its storage identity. A sequence number already used in the room yields
	// ErrMessageStored.
	InsertMessage(ctx context.Context, roomName string, doc *domain.MessageDocument) (int64, error)
	MessageExists(ctx context.Context, roomName string, id int64) (bool, error)
	// MessageIDBySequence returns the storage identity of the room's message
	// with sequence number seq, or ErrNotFound.
	MessageIDBySequence(ctx context.Context, roomName string, seq int64) (int64, error)
	// ListMessages returns every message of the room ordered by sequence number.
	ListMessages(ctx context.Context, roomName string) ([]domain.MessageDocument, error)
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

func (r *roomRepository) Exists(ctx context.Context, roomName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_rooms WHERE room_name = $1)`, roomName).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check room existence", "error", err, "room", roomName)
		return false, storageError("check room", err)
	}
	return exists, nil
}

func (r *roomRepository) GetMetadata(ctx context.Context, roomName string) (*domain.RoomMetadata, error) {
	query := `
		SELECT room_name, owner_alias, room_type, member_list, create_time, modify_time
		FROM chat_rooms
		WHERE room_name = $1
	`

	meta := &domain.RoomMetadata{}
	err := r.db.QueryRow(ctx, query, roomName).Scan(
		&meta.RoomName, &meta.OwnerAlias, &meta.RoomType, &meta.MemberList,
		&meta.CreateTime, &meta.ModifyTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room metadata", "error", err, "room", roomName)
		return nil, storageError("get room metadata", err)
	}

	return meta, nil
}

func (r *roomRepository) InsertMetadata(ctx context.Context, meta *domain.RoomMetadata) error {
	query := `
		INSERT INTO chat_rooms (room_name, owner_alias, room_type, member_list, create_time, modify_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		meta.RoomName, meta.OwnerAlias, string(meta.RoomType), meta.MemberList,
		meta.CreateTime, meta.ModifyTime,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("Room metadata already exists", "room", meta.RoomName)
			return apperrors.ErrRoomAlreadyExists
		}
		r.log.Error("Failed to insert room metadata", "error", err, "room", meta.RoomName)
		return storageError("insert room metadata", err)
	}

	return nil
}

func (r *roomRepository) ReplaceMetadata(ctx context.Context, meta *domain.RoomMetadata) error {
	query := `
		INSERT INTO chat_rooms (room_name, owner_alias, room_type, member_list, create_time, modify_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_name) DO UPDATE
		SET owner_alias = EXCLUDED.owner_alias,
		    room_type = EXCLUDED.room_type,
		    member_list = EXCLUDED.member_list,
		    create_time = EXCLUDED.create_time,
		    modify_time = EXCLUDED.modify_time
	`

	_, err := r.db.Exec(ctx, query,
		meta.RoomName, meta.OwnerAlias, string(meta.RoomType), meta.MemberList,
		meta.CreateTime, meta.ModifyTime,
	)
	if err != nil {
		r.log.Error("Failed to replace room metadata", "error", err, "room", meta.RoomName)
		return storageError("replace room metadata", err)
	}

	return nil
}

func (r *roomRepository) InsertMessage(ctx context.Context, roomName string, doc *domain.MessageDocument) (int64, error) {
	props, err := json.Marshal(doc.Props)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message properties: %w", err)
	}

	query := `
		INSERT INTO chat_messages (room_name, message, sequence_num, mess_props)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err = r.db.QueryRow(ctx, query, roomName, doc.Message, doc.Props.SequenceNum, props).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("Message sequence already stored", "room", roomName, "sequence", doc.Props.SequenceNum)
			return 0, fmt.Errorf("insert message %s/%d: %w", roomName, doc.Props.SequenceNum, apperrors.ErrMessageStored)
		}
		r.log.Error("Failed to insert message", "error", err, "room", roomName, "sequence", doc.Props.SequenceNum)
		return 0, storageError("insert message", err)
	}

	return id, nil
}

func (r *roomRepository) MessageIDBySequence(ctx context.Context, roomName string, seq int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT id FROM chat_messages WHERE room_name = $1 AND sequence_num = $2`,
		roomName, seq,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		r.log.Error("Failed to look up message by sequence", "error", err, "room", roomName, "sequence", seq)
		return 0, storageError("find message", err)
	}
	return id, nil
}

func (r *roomRepository) MessageExists(ctx context.Context, roomName string, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_messages WHERE room_name = $1 AND id = $2)`,
		roomName, id,
	).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check message existence", "error", err, "room", roomName, "id", id)
		return false, storageError("check message", err)
	}
	return exists, nil
}

func (r *roomRepository) ListMessages(ctx context.Context, roomName string) ([]domain.MessageDocument, error) {
	query := `
		SELECT id, message, mess_props
		FROM chat_messages
		WHERE room_name = $1
		ORDER BY sequence_num ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, roomName)
	if err != nil {
		r.log.Error("Failed to list messages", "error", err, "room", roomName)
		return nil, storageError("list messages", err)
	}
	defer rows.Close()

	var docs []domain.MessageDocument
	for rows.Next() {
		var (
			doc   domain.MessageDocument
			props []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Message, &props); err != nil {
			r.log.Error("Failed to scan message", "error", err, "room", roomName)
			return nil, storageError("scan message", err)
		}
		if err := json.Unmarshal(props, &doc.Props); err != nil {
			r.log.Warn("Skipping message with unreadable properties", "error", err, "room", roomName, "id", doc.ID)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate messages", err)
	}

	return docs, nil
}
