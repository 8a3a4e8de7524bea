package service

import (
	"context"

	"chat_backend/internal/domain"
	"chat_backend/internal/repository"
	"chat_backend/pkg/logger"
)

type RateLimitService interface {
	// Allow counts one hit for subject under rule and reports whether it
	// fits in the current window, plus the hits left.
	Allow(ctx context.Context, rule domain.RateLimitRule, subject string) (bool, int, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, rule domain.RateLimitRule, subject string) (bool, int, error) {
	count, err := s.rateLimitRepo.Increment(ctx, rule.Key(subject), rule.Window)
	if err != nil {
		return false, 0, err
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		s.log.Debug("Rate limit exceeded", "scope", rule.Scope, "subject", subject, "count", count)
		return false, 0, nil
	}
	return true, remaining, nil
}
