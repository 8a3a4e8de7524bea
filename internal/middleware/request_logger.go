package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat_backend/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		args := []any{
			"request_id", requestID,
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if alias, ok := Alias(c); ok {
			args = append(args, "alias", alias)
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("Request failed", args...)
		case status >= 400:
			log.Warn("Request rejected", args...)
		default:
			log.Info("Request handled", args...)
		}
	}
}
