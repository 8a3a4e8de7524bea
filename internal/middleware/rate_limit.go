package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/domain"
	"chat_backend/internal/service"
	apperrors "chat_backend/pkg/errors"
	"chat_backend/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	rule             domain.RateLimitRule
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, rule domain.RateLimitRule, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		rule:             rule,
		log:              log,
	}
}

// Limit counts requests per authenticated alias, or per client IP when the
// route is public.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := Alias(c)
		if !ok {
			subject = c.ClientIP()
		}

		allowed, remaining, err := m.rateLimitService.Allow(c.Request.Context(), m.rule, subject)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err, "subject", subject)
			c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": "Rate limiter unavailable"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
