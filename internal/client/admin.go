package client

import (
	"context"

	"github.com/mcoot/gamerelay/internal/api/request"
	"github.com/mcoot/gamerelay/internal/api/response"
)

// The calls below target the hub's internal listener

// CreateToken issues a token
func (c *Client) CreateToken(ctx context.Context, req request.CreateTokenRequest) (*response.Token, error) {
	var result response.Token
	if err := c.Post(ctx, "/token", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTokens lists live tokens
func (c *Client) ListTokens(ctx context.Context) ([]response.Token, error) {
	var result []response.Token
	if err := c.Get(ctx, "/token", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateTokenNote replaces a token's note
func (c *Client) UpdateTokenNote(ctx context.Context, token, note string) (*response.Token, error) {
	var result response.Token
	if err := c.Patch(ctx, "/token/"+token, request.UpdateTokenRequest{Note: &note}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RevokeToken invalidates a token
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	return c.Delete(ctx, "/token/"+token)
}

// CreateUser registers a user
func (c *Client) CreateUser(ctx context.Context, req request.CreateUserRequest) (*response.User, error) {
	var result response.User
	if err := c.Post(ctx, "/user", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser fetches a user by id
func (c *Client) GetUser(ctx context.Context, userID string) (*response.User, error) {
	var result response.User
	if err := c.Get(ctx, "/user/"+userID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateUser changes a user; nil fields are left alone
func (c *Client) UpdateUser(ctx context.Context, userID string, req request.UpdateUserRequest) (*response.User, error) {
	var result response.User
	if err := c.Patch(ctx, "/user/"+userID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListGames lists every registered game
func (c *Client) ListGames(ctx context.Context) ([]response.Game, error) {
	var result []response.Game
	if err := c.Get(ctx, "/game", &result); err != nil {
		return nil, err
	}
	return result, nil
}
