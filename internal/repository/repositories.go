package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"chat_backend/internal/config"
	"chat_backend/pkg/logger"
)

type Repositories struct {
	Room      RoomRepository
	RoomList  RoomListRepository
	Sequence  SequenceRepository
	User      UserRepository
	RateLimit RateLimitRepository
	Audit     AuditRepository
}

// NewRepositories wires the stores selected by cfg. db may be nil for the
// memory driver and rdb may be nil when nothing needs Redis.
func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, cfg config.ChatConfig, log logger.Logger) *Repositories {
	repos := NewMemoryRepositories()
	repos.Sequence = nil
	if cfg.StorageDriver == config.StorageDriverMemory || db == nil {
		log.Info("Using in-memory chat storage")
	} else {
		repos.Room = NewRoomRepository(db, log)
		repos.RoomList = NewRoomListRepository(db, log)
		repos.User = NewUserRepository(db, log)
		repos.Audit = NewAuditRepository(db, log)
		log.Info("Using PostgreSQL chat storage")
	}

	switch cfg.SequenceBackend {
	case config.SequenceBackendRedis:
		if rdb != nil {
			repos.Sequence = NewRedisSequenceRepository(rdb, cfg.CounterID, log)
		}
	case config.SequenceBackendPostgres:
		if db != nil {
			repos.Sequence = NewPostgresSequenceRepository(db, cfg.CounterID, log)
		}
	case config.SequenceBackendMemory:
		repos.Sequence = NewMemorySequenceRepository()
	}
	if repos.Sequence == nil {
		log.Warn("Sequence backend unavailable, falling back to in-memory counters", "backend", cfg.SequenceBackend)
		repos.Sequence = NewMemorySequenceRepository()
	}
	log.Info("Sequence repository initialized", "backend", cfg.SequenceBackend, "counter", cfg.CounterID)

	if rdb != nil {
		repos.RateLimit = NewRateLimitRepository(rdb, log)
	}

	return repos
}

func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Room:      NewMemoryRoomRepository(),
		RoomList:  NewMemoryRoomListRepository(),
		Sequence:  NewMemorySequenceRepository(),
		User:      NewMemoryUserRepository(),
		RateLimit: NewMemoryRateLimitRepository(),
		Audit:     NewMemoryAuditRepository(),
	}
}
