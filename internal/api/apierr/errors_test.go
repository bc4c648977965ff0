package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamerelay/internal/model"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{model.ErrGameNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", model.ErrPlayerNotFound), http.StatusNotFound},
		{model.ErrTokenExpired, http.StatusUnauthorized},
		{model.ErrInsufficientPermissions, http.StatusUnauthorized},
		{model.ErrNotMaster, http.StatusForbidden},
		{model.ErrGameFull, http.StatusConflict},
		{model.ErrAlreadyStarted, http.StatusConflict},
		{model.ErrLateJoinNotAllowed, http.StatusConflict},
		{fmt.Errorf("%w: max_players", model.ErrInvalidOption), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", model.ErrProvisioningFailed, model.ErrControlCallFailed), http.StatusServiceUnavailable},
		{model.ErrControlCallFailed, http.StatusBadGateway},
		{NewRateLimitedError(), http.StatusTooManyRequests},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, Status(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewInvalidRequestError("name is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, APIError{Code: CodeInvalidRequest, Message: "name is required"}, resp.Error)
}

func TestInternalErrorsDoNotLeakDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("open /secret/path: permission denied"))

	assert.NotContains(t, rec.Body.String(), "/secret/path")
}
