package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamerelay/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.GameTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func newGame(id model.GameID, created time.Time) *model.Game {
	return &model.Game{
		ID:   id,
		Name: "game " + string(id),
		Options: model.GameOptions{
			MinPlayers:      2,
			MaxPlayers:      4,
			HeartbeatPeriod: 2,
			Extra:           map[string]any{"board": "large"},
		},
		State:  model.GameStateCreated,
		Master: model.Player{ID: model.MasterPlayerID, Token: "master", Alias: "m", IsMaster: true, GameID: id},
		Players: []model.Player{
			{ID: "02", Token: "a", Alias: "a", GameID: id},
		},
		NextPlayerNumber: 3,
		Server:           &model.Server{Host: "relay", ServerPort: 8081, InternalPort: 8082},
		CreatedAt:        created.UTC().Truncate(time.Millisecond),
	}
}

func (s *StorageSuite) TestSaveAndGetGame() {
	game := newGame("G_1", time.Now())

	err := s.storage.SaveGame(s.ctx, game)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetGame(s.ctx, "G_1")
	s.Require().NoError(err)
	s.Equal(game.Name, retrieved.Name)
	s.Equal(game.Master, retrieved.Master)
	s.Equal(game.Players, retrieved.Players)
	s.Equal(game.Options, retrieved.Options)
	s.Equal(*game.Server, *retrieved.Server)
	s.Equal(3, retrieved.NextPlayerNumber)
	s.True(game.CreatedAt.Equal(retrieved.CreatedAt))
}

func (s *StorageSuite) TestGameHasTTL() {
	_ = s.storage.SaveGame(s.ctx, newGame("G_1", time.Now()))

	ttl := s.mini.TTL(gameKey("G_1"))
	s.Equal(time.Hour, ttl)
}

func (s *StorageSuite) TestGetGameNotFound() {
	_, err := s.storage.GetGame(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestDeleteGame() {
	_ = s.storage.SaveGame(s.ctx, newGame("G_1", time.Now()))

	err := s.storage.DeleteGame(s.ctx, "G_1")
	s.Require().NoError(err)

	_, err = s.storage.GetGame(s.ctx, "G_1")
	s.ErrorIs(err, model.ErrGameNotFound)

	members, err := s.mini.Members(gamesIndexKey())
	if err == nil {
		s.Empty(members)
	}
}

func (s *StorageSuite) TestListGames() {
	now := time.Now()
	_ = s.storage.SaveGame(s.ctx, newGame("G_b", now.Add(time.Minute)))
	_ = s.storage.SaveGame(s.ctx, newGame("G_a", now))

	games, err := s.storage.ListGames(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal(model.GameID("G_a"), games[0].ID)
	s.Equal(model.GameID("G_b"), games[1].ID)
}

func (s *StorageSuite) TestListGamesDropsExpired() {
	_ = s.storage.SaveGame(s.ctx, newGame("G_1", time.Now()))
	_ = s.storage.SaveGame(s.ctx, newGame("G_2", time.Now()))

	s.mini.FastForward(2 * time.Hour)
	_ = s.storage.SaveGame(s.ctx, newGame("G_3", time.Now()))

	games, err := s.storage.ListGames(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(games, 1)
	s.Equal(model.GameID("G_3"), games[0].ID)

	members, err := s.mini.Members(gamesIndexKey())
	s.Require().NoError(err)
	s.Equal([]string{gameKey("G_3")}, members)
}
