package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/gamerelay/internal/broker"
	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/dependencies/random"
	"github.com/mcoot/gamerelay/internal/metrics"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/placement"
	"github.com/mcoot/gamerelay/internal/services/game"
	"github.com/mcoot/gamerelay/internal/services/tokens"
	"github.com/mcoot/gamerelay/internal/services/users"
	"github.com/mcoot/gamerelay/internal/storage"
	"github.com/mcoot/gamerelay/internal/storage/memory"
	redisstorage "github.com/mcoot/gamerelay/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.GameStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	TokenManager   *tokens.Manager
	UserManager    *users.Manager
	Placement      placement.Provisioner
	Broker         *broker.Client
	GameController *game.Controller
	Metrics        *metrics.Metrics

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the game registry backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// TokenConfig and UserConfig configure the journals; zero values keep everything in memory
	TokenConfig tokens.Config
	UserConfig  users.Config
	// Servers are the relays games are placed on, in round-robin order
	Servers []model.Server
	// BrokerHTTPClient is used for control calls (optional)
	BrokerHTTPClient *http.Client
}

// New creates a new application with all dependencies wired and the journals loaded
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.GameStore
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	closeStore := func() {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	tokenCfg := cfg.TokenConfig
	if tokenCfg.ExpungeTriggerRatio == 0 {
		tokenCfg.ExpungeTriggerRatio = tokens.DefaultConfig().ExpungeTriggerRatio
	}
	tokenManager, err := tokens.New(tokenCfg, clk, rnd, logger)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("open token file: %w", err)
	}
	if err := tokenManager.Load(); err != nil {
		_ = tokenManager.Close()
		closeStore()
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	userCfg := cfg.UserConfig
	if userCfg.ExpungeTriggerRatio == 0 {
		userCfg.ExpungeTriggerRatio = users.DefaultConfig().ExpungeTriggerRatio
	}
	userManager, err := users.New(userCfg, clk, rnd, logger)
	if err != nil {
		_ = tokenManager.Close()
		closeStore()
		return nil, fmt.Errorf("open users file: %w", err)
	}
	if err := userManager.Load(); err != nil {
		_ = tokenManager.Close()
		_ = userManager.Close()
		closeStore()
		return nil, fmt.Errorf("load users: %w", err)
	}

	brokerClient := broker.New(cfg.BrokerHTTPClient, logger)
	return newWithDependencies(store, clk, rnd, tokenManager, userManager, placement.NewPool(cfg.Servers...), brokerClient, metrics.New(), logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.GameStore,
	clk clock.Clock,
	rnd random.Random,
	tokenManager *tokens.Manager,
	userManager *users.Manager,
	provisioner placement.Provisioner,
	brokerClient *broker.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *App {
	gameController := game.NewController(store, provisioner, brokerClient, clk, rnd, logger.With(slog.String("component", "games")))

	m.Gauge("tokens_live", "Tokens currently valid", func() float64 {
		return float64(tokenManager.Stats().Live)
	})
	m.Gauge("tokens_dirty", "Token journal lines a compaction would drop", func() float64 {
		return float64(tokenManager.Stats().Dirty)
	})
	m.Gauge("users", "Registered users", func() float64 {
		return float64(userManager.Stats().Users)
	})
	m.Gauge("users_dirty", "User journal lines a compaction would drop", func() float64 {
		return float64(userManager.Stats().Dirty)
	})

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		TokenManager:   tokenManager,
		UserManager:    userManager,
		Placement:      provisioner,
		Broker:         brokerClient,
		GameController: gameController,
		Metrics:        m,
		logger:         logger,
	}
}

// Expunge compacts whichever journals have crossed their trigger ratio
func (a *App) Expunge() error {
	var errs []error

	compacted, err := a.TokenManager.CheckForExpunge()
	if err != nil {
		errs = append(errs, fmt.Errorf("tokens: %w", err))
	}
	if compacted {
		a.Metrics.Compacted("tokens")
	}

	compacted, err = a.UserManager.CheckForExpunge()
	if err != nil {
		errs = append(errs, fmt.Errorf("users: %w", err))
	}
	if compacted {
		a.Metrics.Compacted("users")
	}

	return errors.Join(errs...)
}

// Close releases the journals and the storage connection
func (a *App) Close() error {
	errs := []error{a.TokenManager.Close(), a.UserManager.Close()}
	if c, ok := a.Storage.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
