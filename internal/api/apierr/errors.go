package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/gamerelay/internal/model"
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
	CodeInvalidOption      = "INVALID_OPTION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserDisabled       = "USER_DISABLED"
	CodeNotMaster          = "NOT_MASTER"
	CodeTokenNotFound      = "TOKEN_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeGameNotFound       = "GAME_NOT_FOUND"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeGameFull           = "GAME_FULL"
	CodeAlreadyStarted     = "ALREADY_STARTED"
	CodeLateJoin           = "LATE_JOIN_NOT_ALLOWED"
	CodeNotEnoughPlayers   = "NOT_ENOUGH_PLAYERS"
	CodeMasterCannotLeave  = "MASTER_CANNOT_LEAVE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeProvisioningFailed = "PROVISIONING_FAILED"
	CodeBrokerUnavailable  = "BROKER_UNAVAILABLE"
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

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Lookups
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrTokenNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeTokenNotFound, "Token not found"}}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}

	// Credentials
	case errors.Is(err, model.ErrTokenExpired):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Token expired"}}
	case errors.Is(err, model.ErrInsufficientPermissions):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Token lacks the required permission"}}
	case errors.Is(err, model.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, model.ErrUserDisabled):
		return &httpError{http.StatusForbidden, APIError{CodeUserDisabled, "User is disabled"}}
	case errors.Is(err, model.ErrNotMaster):
		return &httpError{http.StatusForbidden, APIError{CodeNotMaster, "Only the game master can perform this action"}}

	// Conflicts
	case errors.Is(err, model.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}
	case errors.Is(err, model.ErrGameFull):
		return &httpError{http.StatusConflict, APIError{CodeGameFull, "Game is full"}}
	case errors.Is(err, model.ErrAlreadyStarted):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyStarted, "Game has already started"}}
	case errors.Is(err, model.ErrLateJoinNotAllowed):
		return &httpError{http.StatusConflict, APIError{CodeLateJoin, "Game has started and does not allow late joining"}}
	case errors.Is(err, model.ErrNotEnoughPlayers):
		return &httpError{http.StatusConflict, APIError{CodeNotEnoughPlayers, "Not enough players to start"}}
	case errors.Is(err, model.ErrMasterPlayer):
		return &httpError{http.StatusConflict, APIError{CodeMasterCannotLeave, "The game master cannot leave, delete the game instead"}}

	// Validation
	case errors.Is(err, model.ErrInvalidOption):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidOption, err.Error()}}

	// Relay servers
	case errors.Is(err, model.ErrProvisioningFailed):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeProvisioningFailed, "No relay server could host the game"}}
	case errors.Is(err, model.ErrControlCallFailed):
		return &httpError{http.StatusBadGateway, APIError{CodeBrokerUnavailable, "Relay server rejected the request"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) error {
	if message == "" {
		message = "Authentication required"
	}
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, message}}
}

// NewRateLimitedError creates a too many requests error
func NewRateLimitedError() error {
	return &httpError{http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many requests"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
