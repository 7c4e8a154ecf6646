package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("room full"), http.StatusBadRequest},
		{"not found", ErrRoomNotFound, http.StatusNotFound},
		{"denied", Denied("only the host can kick players"), http.StatusForbidden},
		{"conflict", ErrSweepInProgress, http.StatusConflict},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("kick: %w", ErrParticipantNotFound), http.StatusNotFound},
		{"internal", errors.New("pg: connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusFromError(tc.err))
		})
	}
}

func TestPublicMessage_HidesInternalDetails(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("dial tcp 10.0.0.5:5432: refused")))
	assert.Equal(t, "room full", PublicMessage(fmt.Errorf("join: %w", Validation("room full"))))
}

func TestRecovery_UnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("store unavailable")
	err := Recovery(uuid.New(), cause)

	assert.True(t, errors.Is(err, ErrRecovery))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "store unavailable")
}
