package model

import "fmt"

// PlayerID is the two character hex client id used on the wire
type PlayerID string

// FormatPlayerID renders a player number as a wire client id
func FormatPlayerID(n int) PlayerID {
	return PlayerID(fmt.Sprintf("%02x", n))
}

// Player is one participant of a game, identified by the token it joined with
type Player struct {
	ID       PlayerID `json:"id"`
	Token    string   `json:"token"`
	Alias    string   `json:"alias"`
	IsMaster bool     `json:"is_master"`
	GameID   GameID   `json:"game_id"`
}
