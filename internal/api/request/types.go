package request

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/model"
)

// CreateGameRequest is the request body for creating a game
type CreateGameRequest struct {
	Name    string         `json:"name"`
	Alias   string         `json:"alias,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// JoinGameRequest is the request body for joining a game
type JoinGameRequest struct {
	Alias string `json:"alias,omitempty"`
}

// CreateTokenRequest is the request body for issuing a token.
// Lifespan is seconds as a number or numeric string; Permissions is a list or a "/" separated string.
type CreateTokenRequest struct {
	Lifespan    any    `json:"lifespan"`
	Permissions any    `json:"permissions,omitempty"`
	Note        string `json:"note,omitempty"`
	Temporary   bool   `json:"temporary,omitempty"`
}

// UpdateTokenRequest is the request body for changing a token's note
type UpdateTokenRequest struct {
	Note *string `json:"note"`
}

// CreateUserRequest is the request body for registering a user
type CreateUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email,omitempty"`
	Permissions any    `json:"permissions,omitempty"`
}

// UpdateUserRequest is the request body for changing a user; absent fields are left alone
type UpdateUserRequest struct {
	Password    *string `json:"password,omitempty"`
	Email       *string `json:"email,omitempty"`
	Permissions any     `json:"permissions,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Verified    *bool   `json:"verified,omitempty"`
}

// ParseLifespan accepts seconds as a JSON number or a numeric string
func ParseLifespan(v any) (time.Duration, error) {
	var secs float64
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("expected 'lifespan' value")
	case float64:
		secs = n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("need number for lifespan, but got %q", n)
		}
		secs = f
	default:
		return 0, fmt.Errorf("need number for lifespan, but got %v", v)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("lifespan must be positive")
	}
	return clock.FromSeconds(secs), nil
}

// ParsePermissions accepts a JSON list of names or a "/" separated string
func ParsePermissions(v any) (model.Permissions, error) {
	switch p := v.(type) {
	case nil:
		return model.Permissions{}, nil
	case string:
		return model.ParsePermissions(p), nil
	case []any:
		names := make([]string, 0, len(p))
		for _, item := range p {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected permission names but got %v", item)
			}
			names = append(names, s)
		}
		return model.NewPermissions(names...), nil
	default:
		return nil, fmt.Errorf("expected 'permissions' to be a string or array but got %v", v)
	}
}
