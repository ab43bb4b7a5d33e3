package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/services/auth"
	"github.com/lmartell/cipherduel/internal/services/room"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeRoomFull           = "ROOM_FULL"
	CodeRoomNotJoinable    = "ROOM_NOT_JOINABLE"
	CodeRoomNotWaiting     = "ROOM_NOT_WAITING"
	CodeCodeExhausted      = "CODE_EXHAUSTED"
	CodeNotInRoom          = "NOT_IN_ROOM"
	CodeNotHost            = "NOT_HOST"
	CodeNotEnoughPlayers   = "NOT_ENOUGH_PLAYERS"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}
	case errors.Is(err, model.ErrRoomFull):
		return &httpError{http.StatusConflict, APIError{CodeRoomFull, "Room is full"}}
	case errors.Is(err, model.ErrRoomNotJoinable):
		return &httpError{http.StatusBadRequest, APIError{CodeRoomNotJoinable, "Room is not joinable"}}
	case errors.Is(err, model.ErrRoomNotWaiting):
		return &httpError{http.StatusConflict, APIError{CodeRoomNotWaiting, "Room is no longer waiting"}}
	case errors.Is(err, model.ErrCodeExhausted):
		return &httpError{http.StatusConflict, APIError{CodeCodeExhausted, "Failed to generate unique room code. Try again."}}
	case errors.Is(err, model.ErrNotInRoom):
		return &httpError{http.StatusNotFound, APIError{CodeNotInRoom, "Not in this room"}}
	case errors.Is(err, model.ErrNotHost):
		return &httpError{http.StatusForbidden, APIError{CodeNotHost, "Only host can start the game"}}
	case errors.Is(err, model.ErrNotEnoughPlayers):
		return &httpError{http.StatusBadRequest, APIError{CodeNotEnoughPlayers, "Not enough players to start"}}
	case errors.Is(err, room.ErrInvalidMaxPlayers):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "max_players must be between 2 and 10"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, auth.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
