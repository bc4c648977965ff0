package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/mcoot/gamerelay/internal/api/request"
	"github.com/mcoot/gamerelay/internal/api/response"
)

// ErrNoGame is returned by calls that need a created or joined game first
var ErrNoGame = errors.New("no game created or joined")

// Session is the game this client created or joined, as the caller's player
type Session struct {
	GameID   string          `json:"game_id"`
	GameName string          `json:"game_name"`
	URL      string          `json:"url"`
	Player   response.Player `json:"player"`
}

// Session returns the current game, or nil
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Login exchanges a username and password for a token and uses it from then on
func (c *Client) Login(ctx context.Context, username, password string) (*response.LoginResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/login", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(username, password)

	var result response.LoginResponse
	if err := c.send(req, &result); err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

// CreateGame creates a game with the caller as master. Empty alias and nil
// options leave the choice to the hub.
func (c *Client) CreateGame(ctx context.Context, name, alias string, options map[string]any) (*Session, error) {
	req := request.CreateGameRequest{Name: name, Alias: alias, Options: options}

	var result response.CreateGameResponse
	if err := c.Post(ctx, "/game", req, &result); err != nil {
		return nil, err
	}

	s := &Session{
		GameID:   result.GameID,
		GameName: result.GameName,
		URL:      result.URL,
		Player:   result.MasterPlayer,
	}
	c.setSession(s)
	return s, nil
}

// JoinGame joins an existing game
func (c *Client) JoinGame(ctx context.Context, gameID, alias string) (*Session, error) {
	req := request.JoinGameRequest{Alias: alias}

	var result response.JoinGameResponse
	if err := c.Post(ctx, "/game/"+gameID+"/join", req, &result); err != nil {
		return nil, err
	}

	s := &Session{
		GameID:   result.GameID,
		GameName: result.GameName,
		URL:      result.URL,
		Player:   result.Player,
	}
	c.setSession(s)
	return s, nil
}

// StartGame starts the current game. Only its master may do this.
func (c *Client) StartGame(ctx context.Context) (*response.Game, error) {
	s := c.Session()
	if s == nil {
		return nil, ErrNoGame
	}

	var result response.Game
	if err := c.Post(ctx, "/game/"+s.GameID+"/start", struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetGame fetches any game by id
func (c *Client) GetGame(ctx context.Context, gameID string) (*response.Game, error) {
	var result response.Game
	if err := c.Get(ctx, "/game/"+gameID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LeaveGame leaves the current game and forgets it
func (c *Client) LeaveGame(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return ErrNoGame
	}
	if err := c.Post(ctx, "/game/"+s.GameID+"/leave", struct{}{}, nil); err != nil {
		return err
	}
	c.setSession(nil)
	return nil
}

// DeleteGame removes the current game. Only its master may do this.
func (c *Client) DeleteGame(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return ErrNoGame
	}
	if err := c.Delete(ctx, "/game/"+s.GameID); err != nil {
		return err
	}
	c.setSession(nil)
	return nil
}

// AttachGame makes gameID the current game without joining it again. The
// stream then authenticates with the client's own token, which must already
// belong to a player of the game.
func (c *Client) AttachGame(ctx context.Context, gameID string) (*Session, error) {
	g, err := c.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		GameID:   g.GameID,
		GameName: g.GameName,
		URL:      g.URL,
	}
	c.setSession(s)
	return s, nil
}
