package response

import (
	"time"

	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/services/tokens"
)

// Status is the body of the status endpoints
type Status struct {
	Status string `json:"status"`
	Games  *int   `json:"games,omitempty"`
	Tokens *int   `json:"tokens,omitempty"`
	Users  *int   `json:"users,omitempty"`
}

// Player represents a player in API responses.
// Token is only filled in for the caller's own player.
type Player struct {
	PlayerID string `json:"player_id"`
	Alias    string `json:"alias"`
	Token    string `json:"token,omitempty"`
	IsMaster bool   `json:"is_master,omitempty"`
}

// PlayerFromModel converts a model.Player, hiding its token
func PlayerFromModel(p model.Player) Player {
	return Player{
		PlayerID: string(p.ID),
		Alias:    p.Alias,
		IsMaster: p.IsMaster,
	}
}

// OwnPlayerFromModel converts the caller's own model.Player, token included
func OwnPlayerFromModel(p model.Player) Player {
	resp := PlayerFromModel(p)
	resp.Token = p.Token
	return resp
}

// CreateGameResponse is the response for creating a game
type CreateGameResponse struct {
	GameID       string `json:"game_id"`
	GameName     string `json:"game_name"`
	URL          string `json:"url"`
	MasterPlayer Player `json:"master_player"`
}

// JoinGameResponse is the response for joining a game
type JoinGameResponse struct {
	GameID   string `json:"game_id"`
	GameName string `json:"game_name"`
	URL      string `json:"url"`
	Player   Player `json:"player"`
}

// Game is the full view of a game
type Game struct {
	GameID    string         `json:"game_id"`
	GameName  string         `json:"game_name"`
	URL       string         `json:"url"`
	State     string         `json:"state"`
	Options   map[string]any `json:"options"`
	Players   []Player       `json:"players"`
	CreatedAt time.Time      `json:"created_at"`
}

// GameFromModel converts a model.Game, listing the master first
func GameFromModel(g *model.Game, url string) Game {
	all := g.AllPlayers()
	players := make([]Player, len(all))
	for i, p := range all {
		players[i] = PlayerFromModel(p)
	}
	return Game{
		GameID:    string(g.ID),
		GameName:  g.Name,
		URL:       url,
		State:     string(g.State),
		Options:   g.Options.AsMap(),
		Players:   players,
		CreatedAt: g.CreatedAt,
	}
}

// Token is a token as stored in the token file
type Token = tokens.Record

// TokenFromModel converts a model.Token
func TokenFromModel(t model.Token) Token {
	return tokens.RecordFromModel(t)
}

// TokensFromModel converts a list of tokens
func TokensFromModel(ts []model.Token) []Token {
	out := make([]Token, len(ts))
	for i, t := range ts {
		out[i] = TokenFromModel(t)
	}
	return out
}

// LoginResponse is the response for exchanging credentials for a token
type LoginResponse struct {
	Token       string   `json:"token"`
	Lifespan    float64  `json:"lifespan"`
	Permissions []string `json:"permissions"`
	UserID      string   `json:"user_id"`
}

// User represents a user in API responses; the password hash is never included
type User struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	Permissions []string  `json:"permissions"`
	Enabled     bool      `json:"enabled"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserFromModel converts a model.User
func UserFromModel(u model.User) User {
	perms := []string(u.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return User{
		UserID:      string(u.ID),
		Username:    u.Username,
		Email:       u.Email,
		Permissions: perms,
		Enabled:     u.Enabled,
		Verified:    u.Verified,
		CreatedAt:   u.CreatedAt,
	}
}
