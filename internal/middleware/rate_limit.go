package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/service"
	"room_coordinator/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	rule             domain.RateLimitRule
	log              logger.Logger
}

// NewRateLimitMiddleware: rateLimitService может быть nil (Redis выключен), тогда лимит не применяется
func NewRateLimitMiddleware(rateLimitService service.RateLimitService, rule domain.RateLimitRule, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		rule:             rule,
		log:              log,
	}
}

func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.rateLimitService == nil || m.rule.Limit <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if userID, ok := UserIDFrom(c); ok {
			subject = userID.String()
		}
		key := m.rule.Key(subject)

		allowed, err := m.rateLimitService.Allow(c.Request.Context(), key, m.rule.Limit, m.rule.Window)
		if err != nil {
			// при недоступном Redis запросы пропускаются
			m.log.Error("Rate limit check failed", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.rule.Limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
