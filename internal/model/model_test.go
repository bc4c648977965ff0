package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIsValidAt(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := Token{CreatedAt: created, Lifespan: 10 * time.Second, Valid: true}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at creation", created, true},
		{"just before expiry", created.Add(10*time.Second - time.Nanosecond), true},
		{"exactly at expiry", created.Add(10 * time.Second), true},
		{"after expiry", created.Add(10*time.Second + time.Nanosecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.IsValidAt(tt.now))
		})
	}
}

func TestInvalidTokenIsNeverValid(t *testing.T) {
	now := time.Now()
	tok := Token{CreatedAt: now, Lifespan: time.Hour, Valid: false}
	assert.False(t, tok.IsValidAt(now))
}

func TestPermissions(t *testing.T) {
	perms := NewPermissions("JOIN_GAME", "CREATE_GAME", "JOIN_GAME", " ")

	assert.Equal(t, Permissions{"CREATE_GAME", "JOIN_GAME"}, perms)
	assert.True(t, perms.Has(PermissionCreateGame))
	assert.False(t, perms.Has(PermissionAdmin))
	assert.True(t, perms.HasAny(PermissionAdmin, PermissionJoinGame))
	assert.False(t, perms.HasAny(PermissionAdmin))
	assert.True(t, perms.HasAny())
	assert.True(t, ParsePermissions("JOIN_GAME/CREATE_GAME").Equal(perms))
}

func TestParseGameOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := ParseGameOptions(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultGameOptions(), opts)
	})

	t.Run("coerces strings and keeps extras", func(t *testing.T) {
		opts, err := ParseGameOptions(map[string]any{
			"max_players":     "4",
			"min_players":     float64(1),
			"allow_late_join": "true",
			"map":             "desert",
		})
		require.NoError(t, err)
		assert.Equal(t, 4, opts.MaxPlayers)
		assert.Equal(t, 1, opts.MinPlayers)
		assert.True(t, opts.AllowLateJoin)
		assert.Equal(t, 2, opts.HeartbeatPeriod)
		assert.Equal(t, map[string]any{"map": "desert"}, opts.Extra)

		flat := opts.AsMap()
		assert.Equal(t, "desert", flat["map"])
		assert.Equal(t, 4, flat[OptionMaxPlayers])
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseGameOptions(map[string]any{"max_players": "lots"})
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("rejects inverted bounds", func(t *testing.T) {
		_, err := ParseGameOptions(map[string]any{"min_players": 3, "max_players": 2})
		assert.ErrorIs(t, err, ErrInvalidOption)
	})
}

func TestGameLookups(t *testing.T) {
	g := &Game{
		Master:  Player{ID: MasterPlayerID, Token: "m", Alias: "host", IsMaster: true},
		Players: []Player{{ID: FormatPlayerID(2), Token: "a", Alias: "alice"}},
	}

	p, ok := g.PlayerByToken("a")
	require.True(t, ok)
	assert.Equal(t, PlayerID("02"), p.ID)

	_, ok = g.PlayerByID("03")
	assert.False(t, ok)

	assert.True(t, g.HasAlias("host"))
	assert.True(t, g.IsMaster("m"))
	assert.Len(t, g.AllPlayers(), 2)
	assert.Equal(t, PlayerID("ff"), FormatPlayerID(MaxPlayerNumber))
}
