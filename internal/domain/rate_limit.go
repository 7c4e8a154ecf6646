package domain

import (
	"time"
)

// RateLimitRule - не больше Limit запросов за Window на один ключ области
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

const (
	RateLimitScopeUser = "user"
	RateLimitScopeIP   = "ip"
)

// Key строит ключ счетчика для субъекта правила
func (r RateLimitRule) Key(subject string) string {
	return r.Scope + ":" + subject
}
