package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/handler"
	"room_coordinator/internal/middleware"
)

// adminClient вызывает административный API восстановления
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(baseURL, token string, timeout time.Duration) *adminClient {
	return &adminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// mintAdminToken выпускает короткоживущий токен с ролью admin по общему секрету
func mintAdminToken(secret, issuer string, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := middleware.JWTClaims{
		UserID: userID.String(),
		Roles:  []string{domain.GlobalRoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (c *adminClient) trigger(ctx context.Context, req handler.RecoveryRequest) (*handler.RecoveryResponse, error) {
	var out handler.RecoveryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/recovery", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) stats(ctx context.Context) (*domain.RecoveryStats, error) {
	var out domain.RecoveryStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/recovery/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
