package model

import (
	"fmt"
	"strconv"
	"time"
)

// GameID uniquely identifies a game
type GameID string

// GameState represents the current phase of a game
type GameState string

const (
	GameStateCreated GameState = "created" // Accepting players, relay not yet started
	GameStateStarted GameState = "started" // Relay is live
)

// MasterPlayerID is always assigned to the player that created the game
const MasterPlayerID PlayerID = "01"

// FirstPlayerNumber is the number assigned to the first non-master player
const FirstPlayerNumber = 2

// MaxPlayerNumber is the largest number that fits in a two character player id
const MaxPlayerNumber = 0xff

// Option keys understood by the hub. Anything else is passed to the broker untouched.
const (
	OptionMinPlayers      = "min_players"
	OptionMaxPlayers      = "max_players"
	OptionAllowLateJoin   = "allow_late_join"
	OptionHeartbeatPeriod = "heartbeat_period"
)

// GameOptions holds the per-game settings forwarded to the broker
type GameOptions struct {
	MinPlayers      int            `json:"min_players"`
	MaxPlayers      int            `json:"max_players"`
	AllowLateJoin   bool           `json:"allow_late_join"`
	HeartbeatPeriod int            `json:"heartbeat_period"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// DefaultGameOptions returns the options used when a caller supplies none
func DefaultGameOptions() GameOptions {
	return GameOptions{
		MinPlayers:      2,
		MaxPlayers:      2,
		AllowLateJoin:   false,
		HeartbeatPeriod: 2,
	}
}

// ParseGameOptions overlays raw caller options on the defaults.
// Numeric and boolean values may be given as strings.
func ParseGameOptions(raw map[string]any) (GameOptions, error) {
	opts := DefaultGameOptions()
	for key, value := range raw {
		var err error
		switch key {
		case OptionMinPlayers:
			opts.MinPlayers, err = coerceInt(value)
		case OptionMaxPlayers:
			opts.MaxPlayers, err = coerceInt(value)
		case OptionHeartbeatPeriod:
			opts.HeartbeatPeriod, err = coerceInt(value)
		case OptionAllowLateJoin:
			opts.AllowLateJoin, err = coerceBool(value)
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[key] = value
		}
		if err != nil {
			return GameOptions{}, fmt.Errorf("%w: %s: %v", ErrInvalidOption, key, err)
		}
	}

	if opts.MinPlayers < 0 || opts.MaxPlayers < 1 || opts.MinPlayers > opts.MaxPlayers {
		return GameOptions{}, fmt.Errorf("%w: player bounds %d..%d", ErrInvalidOption, opts.MinPlayers, opts.MaxPlayers)
	}
	return opts, nil
}

// AsMap flattens the options into the form sent to the broker
func (o GameOptions) AsMap() map[string]any {
	m := make(map[string]any, len(o.Extra)+4)
	for k, v := range o.Extra {
		m[k] = v
	}
	m[OptionMinPlayers] = o.MinPlayers
	m[OptionMaxPlayers] = o.MaxPlayers
	m[OptionAllowLateJoin] = o.AllowLateJoin
	m[OptionHeartbeatPeriod] = o.HeartbeatPeriod
	return m
}

func coerceInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func coerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case float64:
		return b != 0, nil
	default:
		return false, fmt.Errorf("unsupported type %T", v)
	}
}

// Game is a session hosted on a relay server
type Game struct {
	ID      GameID      `json:"id"`
	Name    string      `json:"name"`
	Options GameOptions `json:"options"`
	State   GameState   `json:"state"`

	// Master created the game and receives every non-master frame
	Master Player `json:"master"`

	// Players that joined after creation, in join order
	Players []Player `json:"players"`

	// NextPlayerNumber is formatted as the id of the next joiner; never reused
	NextPlayerNumber int `json:"next_player_number"`

	// Server is nil until placement succeeds
	Server *Server `json:"server,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with g
func (g *Game) Clone() *Game {
	c := *g
	c.Players = append([]Player(nil), g.Players...)
	if g.Server != nil {
		srv := *g.Server
		c.Server = &srv
	}
	if g.Options.Extra != nil {
		c.Options.Extra = make(map[string]any, len(g.Options.Extra))
		for k, v := range g.Options.Extra {
			c.Options.Extra[k] = v
		}
	}
	return &c
}

// AllPlayers returns the master followed by every joined player
func (g *Game) AllPlayers() []Player {
	all := make([]Player, 0, len(g.Players)+1)
	all = append(all, g.Master)
	return append(all, g.Players...)
}

// PlayerByToken finds the player (master included) holding token
func (g *Game) PlayerByToken(token string) (Player, bool) {
	for _, p := range g.AllPlayers() {
		if p.Token == token {
			return p, true
		}
	}
	return Player{}, false
}

// PlayerByID finds the player (master included) with the given id
func (g *Game) PlayerByID(id PlayerID) (Player, bool) {
	for _, p := range g.AllPlayers() {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// HasAlias reports whether any player already uses alias
func (g *Game) HasAlias(alias string) bool {
	for _, p := range g.AllPlayers() {
		if p.Alias == alias {
			return true
		}
	}
	return false
}

// IsMaster reports whether token belongs to the game master
func (g *Game) IsMaster(token string) bool {
	return g.Master.Token == token
}
