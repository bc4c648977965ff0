package request

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamerelay/internal/model"
)

func TestParseLifespan(t *testing.T) {
	tests := []struct {
		body    string
		want    time.Duration
		wantErr bool
	}{
		{`{"lifespan": 60}`, time.Minute, false},
		{`{"lifespan": "1.5"}`, 1500 * time.Millisecond, false},
		{`{"lifespan": "soon"}`, 0, true},
		{`{"lifespan": 0}`, 0, true},
		{`{"lifespan": true}`, 0, true},
		{`{}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req CreateTokenRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			got, err := ParseLifespan(req.Lifespan)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		body    string
		want    model.Permissions
		wantErr bool
	}{
		{`{}`, model.Permissions{}, false},
		{`{"permissions": "JOIN_GAME/CREATE_GAME"}`, model.Permissions{"CREATE_GAME", "JOIN_GAME"}, false},
		{`{"permissions": ["JOIN_GAME", "JOIN_GAME"]}`, model.Permissions{"JOIN_GAME"}, false},
		{`{"permissions": [1]}`, nil, true},
		{`{"permissions": 7}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req CreateTokenRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			got, err := ParsePermissions(req.Permissions)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
