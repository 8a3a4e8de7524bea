package service

import (
	"context"
	"errors"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/pkg/jwt"
	"chat_backend/pkg/logger"
)

type AuthService interface {
	// Register creates the alias and returns a token for it.
	Register(ctx context.Context, alias string) (*LoginResponse, error)
	// Login issues a fresh token for an already registered alias.
	Login(ctx context.Context, alias string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*domain.ChatUser, error)
}

type LoginResponse struct {
	User        *domain.ChatUser `json:"user"`
	AccessToken string           `json:"access_token"`
}

type authService struct {
	users  UserService
	jwtCfg config.JWTConfig
	log    logger.Logger
}

func NewAuthService(users UserService, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		users:  users,
		jwtCfg: jwtCfg,
		log:    log,
	}
}

func (s *authService) Register(ctx context.Context, alias string) (*LoginResponse, error) {
	user, err := s.users.Register(ctx, alias)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, alias string) (*LoginResponse, error) {
	user, err := s.users.Get(ctx, alias)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.ChatUser, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, claims.Alias)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) issue(user *domain.ChatUser) (*LoginResponse, error) {
	token, err := jwt.GenerateAccessToken(user.Alias, s.jwtCfg.Issuer, s.jwtCfg.AccessSecret, s.jwtCfg.AccessTTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err, "alias", user.Alias)
		return nil, errors.New("failed to generate access token")
	}
	return &LoginResponse{User: user, AccessToken: token}, nil
}
