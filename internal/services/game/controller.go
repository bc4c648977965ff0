package game

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/dependencies/random"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/placement"
	"github.com/mcoot/gamerelay/internal/storage"
)

const (
	gameIDPrefix = "G_"
	gameIDBytes  = 12

	// aliases that collide get a random suffix in [1, maxAliasSuffix]
	maxAliasSuffix = 999
)

// Broker is the control plane of the relay servers games are placed on
type Broker interface {
	CreateGame(ctx context.Context, srv model.Server, game *model.Game) error
	AddPlayer(ctx context.Context, srv model.Server, gameID model.GameID, p model.Player) error
	StartGame(ctx context.Context, srv model.Server, gameID model.GameID) error
	RemoveGame(ctx context.Context, srv model.Server, gameID model.GameID) error
	RemovePlayer(ctx context.Context, srv model.Server, gameID model.GameID, p model.Player) error
}

// Controller manages the game registry and keeps relay servers in step with it
type Controller struct {
	storage     storage.GameStore
	provisioner placement.Provisioner
	broker      Broker
	clock       clock.Clock
	random      random.Random
	logger      *slog.Logger

	locksMu sync.Mutex
	locks   map[model.GameID]*sync.Mutex
}

// NewController creates a new game Controller
func NewController(
	storage storage.GameStore,
	provisioner placement.Provisioner,
	broker Broker,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:     storage,
		provisioner: provisioner,
		broker:      broker,
		clock:       clock,
		random:      random,
		logger:      logger,
		locks:       make(map[model.GameID]*sync.Mutex),
	}
}

// lock serialises mutations of one game
func (c *Controller) lock(id model.GameID) func() {
	c.locksMu.Lock()
	mu, ok := c.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[id] = mu
	}
	c.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (c *Controller) forget(id model.GameID) {
	c.locksMu.Lock()
	delete(c.locks, id)
	c.locksMu.Unlock()
}

// CreateGame registers a game, places it on a server and tells the server about it.
// The game is dropped from the registry again if either step fails.
func (c *Controller) CreateGame(ctx context.Context, name string, master model.Player, opts model.GameOptions) (*model.Game, error) {
	gameID, err := c.newGameID(ctx)
	if err != nil {
		return nil, err
	}

	unlock := c.lock(gameID)
	defer unlock()

	now := c.clock.Now()
	master.ID = model.MasterPlayerID
	master.IsMaster = true
	master.GameID = gameID

	game := &model.Game{
		ID:               gameID,
		Name:             name,
		Options:          opts,
		State:            model.GameStateCreated,
		Master:           master,
		Players:          []model.Player{},
		NextPlayerNumber: model.FirstPlayerNumber,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := c.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	srv, err := c.provisioner.Provision(ctx, game)
	if err != nil {
		return nil, c.abandon(ctx, game, err)
	}
	game.Server = &srv

	if err := c.broker.CreateGame(ctx, srv, game); err != nil {
		return nil, c.abandon(ctx, game, err)
	}

	if err := c.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	c.logger.Info("game created",
		slog.String("game_id", string(game.ID)),
		slog.String("name", name),
		slog.String("server", srv.PublicURL()),
	)
	return game, nil
}

// abandon drops a game whose placement failed. The delete runs even if ctx is already cancelled.
func (c *Controller) abandon(ctx context.Context, game *model.Game, cause error) error {
	c.logger.Error("game placement failed",
		slog.String("game_id", string(game.ID)),
		slog.String("error", cause.Error()),
	)
	failed := fmt.Errorf("%w: %w", model.ErrProvisioningFailed, cause)

	if err := c.storage.DeleteGame(context.WithoutCancel(ctx), game.ID); err != nil {
		c.logger.Error("failed to drop abandoned game",
			slog.String("game_id", string(game.ID)),
			slog.String("error", err.Error()),
		)
		return errors.Join(failed, fmt.Errorf("drop abandoned game: %w", err))
	}
	c.forget(game.ID)
	return failed
}

// load fetches a game for a mutation. Games that expired out of the store
// also lose their lock entry.
func (c *Controller) load(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if errors.Is(err, model.ErrGameNotFound) {
		c.forget(gameID)
	}
	return game, err
}

// serverOf returns the server a game runs on. A game without one never
// finished creation and cannot be used.
func serverOf(game *model.Game) (model.Server, error) {
	if game.Server == nil {
		return model.Server{}, fmt.Errorf("%w: game %s has no server", model.ErrProvisioningFailed, game.ID)
	}
	return *game.Server, nil
}

// AddPlayer joins player to the game. A token that already joined gets its existing player back
// and added reports false.
func (c *Controller) AddPlayer(ctx context.Context, gameID model.GameID, player model.Player) (model.Player, bool, error) {
	unlock := c.lock(gameID)
	defer unlock()

	game, err := c.load(ctx, gameID)
	if err != nil {
		return model.Player{}, false, err
	}

	if existing, ok := game.PlayerByToken(player.Token); ok {
		return existing, false, nil
	}
	srv, err := serverOf(game)
	if err != nil {
		return model.Player{}, false, err
	}

	if game.State == model.GameStateStarted && !game.Options.AllowLateJoin {
		return model.Player{}, false, model.ErrLateJoinNotAllowed
	}
	if len(game.Players) >= game.Options.MaxPlayers || game.NextPlayerNumber > model.MaxPlayerNumber {
		return model.Player{}, false, model.ErrGameFull
	}

	player.Alias = c.uniqueAlias(game, player.Alias)
	player.ID = model.FormatPlayerID(game.NextPlayerNumber)
	player.IsMaster = false
	player.GameID = gameID

	if err := c.broker.AddPlayer(ctx, srv, gameID, player); err != nil {
		return model.Player{}, false, err
	}

	game.NextPlayerNumber++
	game.Players = append(game.Players, player)
	game.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveGame(ctx, game); err != nil {
		return model.Player{}, false, err
	}

	c.logger.Info("player joined",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(player.ID)),
		slog.String("alias", player.Alias),
	)
	return player, true, nil
}

func (c *Controller) uniqueAlias(game *model.Game, alias string) string {
	candidate := alias
	for game.HasAlias(candidate) {
		candidate = alias + strconv.Itoa(c.random.Intn(maxAliasSuffix)+1)
	}
	return candidate
}

// StartGame moves the game to started once enough players have joined
func (c *Controller) StartGame(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	unlock := c.lock(gameID)
	defer unlock()

	game, err := c.load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if game.State == model.GameStateStarted {
		return nil, model.ErrAlreadyStarted
	}
	if len(game.Players) < game.Options.MinPlayers {
		return nil, model.ErrNotEnoughPlayers
	}
	srv, err := serverOf(game)
	if err != nil {
		return nil, err
	}

	if err := c.broker.StartGame(ctx, srv, gameID); err != nil {
		return nil, err
	}

	game.State = model.GameStateStarted
	game.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	c.logger.Info("game started",
		slog.String("game_id", string(gameID)),
		slog.Int("player_count", len(game.Players)),
	)
	return game, nil
}

// RemoveGame tears the game down on its server and drops it from the registry
func (c *Controller) RemoveGame(ctx context.Context, gameID model.GameID) error {
	unlock := c.lock(gameID)
	defer unlock()

	game, err := c.load(ctx, gameID)
	if err != nil {
		return err
	}

	if game.Server != nil {
		if err := c.broker.RemoveGame(ctx, *game.Server, gameID); err != nil {
			return err
		}
	}

	if err := c.storage.DeleteGame(ctx, gameID); err != nil {
		return err
	}
	c.forget(gameID)

	c.logger.Info("game removed", slog.String("game_id", string(gameID)))
	return nil
}

// RemovePlayer drops a joined player. Its id is never handed out again.
func (c *Controller) RemovePlayer(ctx context.Context, gameID model.GameID, playerID model.PlayerID) error {
	unlock := c.lock(gameID)
	defer unlock()

	game, err := c.load(ctx, gameID)
	if err != nil {
		return err
	}

	player, ok := game.PlayerByID(playerID)
	if !ok {
		return model.ErrPlayerNotFound
	}
	if player.IsMaster {
		return model.ErrMasterPlayer
	}
	srv, err := serverOf(game)
	if err != nil {
		return err
	}

	if err := c.broker.RemovePlayer(ctx, srv, gameID, player); err != nil {
		return err
	}

	remaining := make([]model.Player, 0, len(game.Players))
	for _, p := range game.Players {
		if p.ID != playerID {
			remaining = append(remaining, p)
		}
	}
	game.Players = remaining
	game.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveGame(ctx, game); err != nil {
		return err
	}

	c.logger.Info("player left",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(playerID)),
	)
	return nil
}

// GetGame retrieves a game by ID
func (c *Controller) GetGame(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	return c.load(ctx, gameID)
}

// ListGames returns every registered game
func (c *Controller) ListGames(ctx context.Context) ([]*model.Game, error) {
	return c.storage.ListGames(ctx)
}

// GameURL is where players stream frames for game, empty until it is placed
func (c *Controller) GameURL(game *model.Game) string {
	if game.Server == nil {
		return ""
	}
	return game.Server.GameURL(game.ID)
}

func (c *Controller) newGameID(ctx context.Context) (model.GameID, error) {
	for {
		id := model.GameID(gameIDPrefix + base64.RawURLEncoding.EncodeToString(c.random.Bytes(gameIDBytes)))
		_, err := c.storage.GetGame(ctx, id)
		if errors.Is(err, model.ErrGameNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}
