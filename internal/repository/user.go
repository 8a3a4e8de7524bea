package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat_backend/internal/domain"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.ChatUser) error
	GetByAlias(ctx context.Context, alias string) (*domain.ChatUser, error)
	Exists(ctx context.Context, alias string) (bool, error)
	ListAliases(ctx context.Context) ([]string, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) Create(ctx context.Context, user *domain.ChatUser) error {
	query := `
		INSERT INTO chat_users (alias, create_time, modify_time)
		VALUES ($1, $2, $3)
		RETURNING create_time, modify_time
	`

	err := r.db.QueryRow(ctx, query, user.Alias, user.CreateTime, user.ModifyTime).
		Scan(&user.CreateTime, &user.ModifyTime)
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("User already exists (unique violation)", "alias", user.Alias)
			return apperrors.ErrUserAlreadyExists
		}
		r.log.Error("Failed to create user", "error", err, "alias", user.Alias)
		return storageError("create user", err)
	}

	return nil
}

func (r *userRepository) GetByAlias(ctx context.Context, alias string) (*domain.ChatUser, error) {
	user := &domain.ChatUser{}
	err := r.db.QueryRow(ctx,
		`SELECT alias, create_time, modify_time FROM chat_users WHERE alias = $1`, alias,
	).Scan(&user.Alias, &user.CreateTime, &user.ModifyTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user", "error", err, "alias", alias)
		return nil, storageError("get user", err)
	}
	return user, nil
}

func (r *userRepository) Exists(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_users WHERE alias = $1)`, alias).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check user existence", "error", err, "alias", alias)
		return false, storageError("check user", err)
	}
	return exists, nil
}

func (r *userRepository) ListAliases(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT alias FROM chat_users ORDER BY create_time ASC, alias ASC`)
	if err != nil {
		r.log.Error("Failed to list users", "error", err)
		return nil, storageError("list users", err)
	}
	defer rows.Close()

	aliases := []string{}
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			r.log.Error("Failed to scan user alias", "error", err)
			return nil, storageError("scan user", err)
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate users", err)
	}

	return aliases, nil
}
