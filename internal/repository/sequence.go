package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

// SequenceKeyPrefix prefixes the Redis hash holding every room counter.
const SequenceKeyPrefix = "sequence:%s"

// SequenceRepository hands out per-room sequence numbers. Next must be an
// atomic increment-and-fetch in the backing store; numbers are never reused.
type SequenceRepository interface {
	Next(ctx context.Context, roomName string) (int64, error)
}

func allocationError(roomName string, err error) error {
	return fmt.Errorf("room %s: %w: %w", roomName, apperrors.ErrSequenceAllocation, err)
}

// redisSequenceRepository keeps one hash (the counter document) with one
// integer field per room and bumps it with HINCRBY.
type redisSequenceRepository struct {
	rdb *redis.Client
	key string
	log logger.Logger
}

func NewRedisSequenceRepository(rdb *redis.Client, counterID string, log logger.Logger) SequenceRepository {
	return &redisSequenceRepository{
		rdb: rdb,
		key: fmt.Sprintf(SequenceKeyPrefix, counterID),
		log: log,
	}
}

func (r *redisSequenceRepository) Next(ctx context.Context, roomName string) (int64, error) {
	n, err := r.rdb.HIncrBy(ctx, r.key, roomName, 1).Result()
	if err != nil {
		r.log.Error("Failed to allocate sequence number", "error", err, "room", roomName, "key", r.key)
		return 0, allocationError(roomName, err)
	}
	return n, nil
}

// postgresSequenceRepository stores the counter document as one row per
// (counter, room) and increments it with a single upsert.
type postgresSequenceRepository struct {
	db        *pgxpool.Pool
	counterID string
	log       logger.Logger
}

func NewPostgresSequenceRepository(db *pgxpool.Pool, counterID string, log logger.Logger) SequenceRepository {
	return &postgresSequenceRepository{db: db, counterID: counterID, log: log}
}

func (r *postgresSequenceRepository) Next(ctx context.Context, roomName string) (int64, error) {
	query := `
		INSERT INTO chat_sequences (counter_id, room_name, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (counter_id, room_name) DO UPDATE
		SET value = chat_sequences.value + 1
		RETURNING value
	`

	var n int64
	if err := r.db.QueryRow(ctx, query, r.counterID, roomName).Scan(&n); err != nil {
		r.log.Error("Failed to allocate sequence number", "error", err, "room", roomName, "counter", r.counterID)
		return 0, allocationError(roomName, err)
	}
	return n, nil
}
