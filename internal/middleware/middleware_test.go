package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room_coordinator/internal/domain"
	"room_coordinator/internal/service"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(userID uuid.UUID, roles ...string) JWTClaims {
	return JWTClaims{
		UserID: userID.String(),
		Email:  "player@example.com",
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "auth-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newAuthRouter(auth *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		id, _ := UserIDFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
	})
	r.GET("/admin", auth.RequireAuth(), auth.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/ws", auth.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	auth := NewAuthMiddleware(testSecret, "auth-service", logger.NewNop())
	r := newAuthRouter(auth)
	userID := uuid.New()

	expired := validClaims(userID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims(userID)
	wrongIssuer.Issuer = "someone-else"
	badUser := validClaims(userID)
	badUser.UserID = "not-a-uuid"

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", validClaims(userID)), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, expired), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, wrongIssuer), http.StatusUnauthorized},
		{"bad user id", "Bearer " + signToken(t, testSecret, badUser), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, validClaims(userID)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, "/me", tt.header)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), userID.String())
			}
		})
	}
}

func TestRequireAuth_QueryToken(t *testing.T) {
	auth := NewAuthMiddleware(testSecret, "", logger.NewNop())
	r := newAuthRouter(auth)

	token := signToken(t, testSecret, validClaims(uuid.New()))
	w := get(r, "/ws?token="+token, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	auth := NewAuthMiddleware(testSecret, "", logger.NewNop())
	r := newAuthRouter(auth)

	w := get(r, "/admin", "Bearer "+signToken(t, testSecret, validClaims(uuid.New())))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(r, "/admin", "Bearer "+signToken(t, testSecret, validClaims(uuid.New(), domain.GlobalRoleAdmin)))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

var _ service.RateLimitService = (*countingLimiter)(nil)

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &countingLimiter{counts: map[string]int{}}
	rule := domain.RateLimitRule{Scope: domain.RateLimitScopeIP, Limit: 2, Window: time.Minute}
	mw := NewRateLimitMiddleware(limiter, rule, logger.NewNop())

	r := gin.New()
	r.GET("/x", mw.Limit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/x", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/x", "").Code)
	w := get(r, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// сбой Redis не блокирует запросы
	limiter.err = errors.New("redis down")
	assert.Equal(t, http.StatusOK, get(r, "/x", "").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := NewRateLimitMiddleware(nil, domain.RateLimitRule{Limit: 1}, logger.NewNop())

	r := gin.New()
	r.GET("/x", mw.Limit(), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/x", "").Code)
	}
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNop()))
	r.GET("/denied", func(c *gin.Context) { _ = c.Error(apperrors.Denied("only the host can kick players")) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection refused")) })

	w := get(r, "/denied", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "only the host can kick players")

	w = get(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestOriginIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OriginIP())
	var got string
	r.GET("/x", func(c *gin.Context) {
		got = service.OriginIPFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.7", got)
}
