package redis

import (
	"fmt"

	"github.com/mcoot/gamerelay/internal/model"
)

// Key prefix for all hub data
const keyPrefix = "gamerelay"

// gameKey returns the Redis key for a Game
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// gamesIndexKey returns the Redis key for the SET of known game keys
func gamesIndexKey() string {
	return fmt.Sprintf("%s:idx:games", keyPrefix)
}
