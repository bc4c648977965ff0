// Package broker issues control-plane calls to relay servers.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/gamerelay/internal/model"
)

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// Client talks to the internal port of relay servers
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a broker client. A nil httpClient gets a 10 second timeout client.
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "broker")),
	}
}

// CreateGame registers game and its master on srv
func (c *Client) CreateGame(ctx context.Context, srv model.Server, game *model.Game) error {
	body := CreateGameRequest{
		MasterToken: game.Master.Token,
		ClientID:    string(game.Master.ID),
		Alias:       game.Master.Alias,
		Options:     game.Options.AsMap(),
	}
	return c.do(ctx, http.MethodPost, srv, "/game/"+string(game.ID), body)
}

// AddPlayer registers a joined player on srv
func (c *Client) AddPlayer(ctx context.Context, srv model.Server, gameID model.GameID, p model.Player) error {
	body := AddClientRequest{
		Token:    p.Token,
		ClientID: string(p.ID),
		Alias:    p.Alias,
	}
	return c.do(ctx, http.MethodPost, srv, "/game/"+string(gameID)+"/client", body)
}

// StartGame tells srv the game has started
func (c *Client) StartGame(ctx context.Context, srv model.Server, gameID model.GameID) error {
	return c.do(ctx, http.MethodPut, srv, "/game/"+string(gameID)+"/start", struct{}{})
}

// RemoveGame drops the game from srv
func (c *Client) RemoveGame(ctx context.Context, srv model.Server, gameID model.GameID) error {
	return c.do(ctx, http.MethodDelete, srv, "/game/"+string(gameID), struct{}{})
}

// RemovePlayer drops a player from the game on srv
func (c *Client) RemovePlayer(ctx context.Context, srv model.Server, gameID model.GameID, p model.Player) error {
	body := RemoveClientRequest{
		Token:    p.Token,
		ClientID: string(p.ID),
	}
	return c.do(ctx, http.MethodDelete, srv, "/game/"+string(gameID)+"/client", body)
}

// do sends one control call. 2xx and 304 count as success.
func (c *Client) do(ctx context.Context, method string, srv model.Server, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := srv.InternalURL() + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("control call failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s %s: %v", model.ErrControlCallFailed, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusNotModified {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Debug("control call",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Warn("control call rejected",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
	)
	return fmt.Errorf("%w: %s %s: HTTP %d: %s", model.ErrControlCallFailed, method, path, resp.StatusCode, bytes.TrimSpace(respBody))
}
