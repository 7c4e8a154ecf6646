package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room_coordinator/internal/domain"
	"room_coordinator/internal/handler"
	"room_coordinator/internal/middleware"
)

type fakeAdminAPI struct {
	lastRequest handler.RecoveryRequest
	lastAuth    string
}

func (f *fakeAdminAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/admin/recovery", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastRequest))

		if f.lastRequest.Action == "busy" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "recovery sweep already in progress"})
			return
		}
		host := uuid.MustParse("33333333-3333-3333-3333-333333333333")
		_ = json.NewEncoder(w).Encode(handler.RecoveryResponse{
			Success: true,
			Message: "processed 1 rooms, 0 failed",
			Results: []domain.RecoveryResult{{
				RoomID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Reason: domain.RecoveryReasonStaleHost,
				Recovered: true, NewHostUserID: &host,
			}},
		})
	})
	mux.HandleFunc("/api/v1/admin/recovery/stats", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(domain.RecoveryStats{TotalRooms: 7, StaleRooms: 2, RecoveredLast24h: 3})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"recoveryctl"}, args...))
	return out.String(), err
}

func TestRecoverAll(t *testing.T) {
	api := &fakeAdminAPI{}
	srv := api.server(t)

	out, err := run(t, "--server", srv.URL, "--token", "abc", "recover-all")
	require.NoError(t, err)
	assert.Equal(t, handler.ActionRecoverAll, api.lastRequest.Action)
	assert.Equal(t, "Bearer abc", api.lastAuth)
	assert.Contains(t, out, "processed 1 rooms")
	assert.Contains(t, out, "33333333-3333-3333-3333-333333333333")
}

func TestRecoverRoom(t *testing.T) {
	api := &fakeAdminAPI{}
	srv := api.server(t)
	roomID := uuid.New()

	_, err := run(t, "--server", srv.URL, "--token", "abc", "recover-room", roomID.String())
	require.NoError(t, err)
	assert.Equal(t, handler.ActionRecoverRoom, api.lastRequest.Action)
	assert.Equal(t, roomID.String(), api.lastRequest.RoomID)

	_, err = run(t, "--server", srv.URL, "--token", "abc", "recover-room", "nope")
	assert.Error(t, err)
}

func TestStatsWithMintedToken(t *testing.T) {
	api := &fakeAdminAPI{}
	srv := api.server(t)

	out, err := run(t, "--server", srv.URL, "--jwt-secret", "s3cret", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "total rooms")
	assert.Contains(t, out, "never")

	raw := strings.TrimPrefix(api.lastAuth, "Bearer ")
	claims := &middleware.JWTClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	assert.Contains(t, claims.Roles, domain.GlobalRoleAdmin)
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RECOVERYCTL_TOKEN", "")
	_, err := run(t, "--server", "http://127.0.0.1:1", "stats")
	assert.ErrorContains(t, err, "--token or --jwt-secret")
}

func TestAPIErrorIsSurfaced(t *testing.T) {
	api := &fakeAdminAPI{}
	srv := api.server(t)

	client := newAdminClient(srv.URL, "abc", 5*time.Second)
	_, err := client.trigger(context.Background(), handler.RecoveryRequest{Action: "busy"})
	assert.ErrorContains(t, err, "recovery sweep already in progress")
	assert.ErrorContains(t, err, "409")
}
