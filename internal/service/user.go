package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

const maxAliasLength = 64

type UserService interface {
	Register(ctx context.Context, alias string) (*domain.ChatUser, error)
	Get(ctx context.Context, alias string) (*domain.ChatUser, error)
	List(ctx context.Context) ([]string, error)

	// IsRegistered and ListAliases let the room list check aliases.
	IsRegistered(ctx context.Context, alias string) (bool, error)
	ListAliases(ctx context.Context) ([]string, error)
}

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) Register(ctx context.Context, alias string) (*domain.ChatUser, error) {
	alias = strings.TrimSpace(alias)
	if err := validateAlias(alias); err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.ChatUser{
		Alias:      alias,
		CreateTime: now,
		ModifyTime: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return nil, err
		}
		s.log.Error("Failed to create user", "error", err, "alias", alias)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("User registered", "alias", alias)
	return user, nil
}

func (s *userService) Get(ctx context.Context, alias string) (*domain.ChatUser, error) {
	return s.userRepo.GetByAlias(ctx, alias)
}

func (s *userService) List(ctx context.Context) ([]string, error) {
	return s.userRepo.ListAliases(ctx)
}

func (s *userService) IsRegistered(ctx context.Context, alias string) (bool, error) {
	if alias == "" {
		return false, nil
	}
	return s.userRepo.Exists(ctx, alias)
}

func (s *userService) ListAliases(ctx context.Context) ([]string, error) {
	return s.userRepo.ListAliases(ctx)
}

func validateAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("alias is required: %w", apperrors.ErrBadRequest)
	}
	if len(alias) > maxAliasLength {
		return fmt.Errorf("alias is too long (max %d characters): %w", maxAliasLength, apperrors.ErrBadRequest)
	}
	if strings.IndexFunc(alias, unicode.IsSpace) >= 0 {
		return fmt.Errorf("alias must not contain whitespace: %w", apperrors.ErrBadRequest)
	}
	return nil
}
