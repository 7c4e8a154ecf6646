package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Виды ошибок ядра. Конкретная ошибка оборачивает один из них через *Error.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrRecovery         = errors.New("recovery failed")
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")

	ErrRoomNotFound        = &Error{Kind: ErrNotFound, Reason: "room not found"}
	ErrParticipantNotFound = &Error{Kind: ErrNotFound, Reason: "participant not found"}
	ErrRoomEnded           = &Error{Kind: ErrConflict, Reason: "room has already ended"}
	ErrRoomBusy            = &Error{Kind: ErrConflict, Reason: "room is busy, try again"}
	ErrSweepInProgress     = &Error{Kind: ErrConflict, Reason: "recovery sweep already in progress"}
	ErrDuplicateRoomCode   = &Error{Kind: ErrConflict, Reason: "room code already in use"}
)

// Error - ошибка определенного вида с понятной человеку причиной
type Error struct {
	Kind   error
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

// Unwrap позволяет errors.Is(err, ErrConflict) и errors.Is(err, cause)
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func Validation(reason string) *Error {
	return &Error{Kind: ErrValidation, Reason: reason}
}

func NotFound(reason string) *Error {
	return &Error{Kind: ErrNotFound, Reason: reason}
}

func Denied(reason string) *Error {
	return &Error{Kind: ErrPermissionDenied, Reason: reason}
}

func Conflict(reason string) *Error {
	return &Error{Kind: ErrConflict, Reason: reason}
}

// Recovery оборачивает сбой восстановления одной комнаты внутри общего прохода
func Recovery(roomID fmt.Stringer, cause error) *Error {
	return &Error{Kind: ErrRecovery, Reason: "recovery of room " + roomID.String() + " failed", Cause: cause}
}

// Reason возвращает причину ошибки ядра или пустую строку
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage - текст ошибки для клиента. Внутренние сбои не раскрываются.
func PublicMessage(err error) string {
	if HTTPStatusFromError(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	if reason := Reason(err); reason != "" {
		return reason
	}
	return err.Error()
}
