package domain

import (
	"fmt"
	"time"
)

type RateLimitRule struct {
	Scope  string        `json:"scope"`
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
}

const (
	RateLimitScopeUser = "user"
	RateLimitScopeRoom = "room"
)

// Key builds the counter key for subject (an alias or a room name).
func (r RateLimitRule) Key(subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.Scope, subject)
}
