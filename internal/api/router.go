package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamerelay/internal/api/handler"
	"github.com/mcoot/gamerelay/internal/api/middleware"
	"github.com/mcoot/gamerelay/internal/metrics"
	"github.com/mcoot/gamerelay/internal/model"
	genericmw "github.com/mcoot/gamerelay/internal/middleware"
	"github.com/mcoot/gamerelay/internal/services/game"
	"github.com/mcoot/gamerelay/internal/services/tokens"
	"github.com/mcoot/gamerelay/internal/services/users"
)

// RouterConfig holds configuration for the hub routers
type RouterConfig struct {
	Logger         *slog.Logger
	TokenManager   *tokens.Manager
	UserManager    *users.Manager
	GameController *game.Controller
	Metrics        *metrics.Metrics

	// RateLimiter throttles the external listener per client address; nil disables it
	RateLimiter *genericmw.RateLimiter

	// LoginLifespan is how long tokens issued by POST /login live
	LoginLifespan time.Duration
}

// NewExternalRouter creates the router for players and game masters
func NewExternalRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	gameHandler := handler.NewGameHandler(cfg.GameController, cfg.UserManager, cfg.Metrics, cfg.Logger)
	userHandler := handler.NewUserHandler(cfg.UserManager, cfg.TokenManager, cfg.LoginLifespan)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(genericmw.Logging(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	r.HandleFunc("/status", handler.External).Methods(http.MethodGet)
	r.HandleFunc("/login", userHandler.Login).Methods(http.MethodPost)

	// Creating a game needs CREATE_GAME, everything else either permission
	createAuth := middleware.Auth(cfg.TokenManager, model.PermissionCreateGame)
	r.Handle("/game", createAuth(http.HandlerFunc(gameHandler.Create))).Methods(http.MethodPost)

	games := r.PathPrefix("/game/{id}").Subrouter()
	games.Use(middleware.Auth(cfg.TokenManager, model.PermissionJoinGame, model.PermissionCreateGame))
	games.HandleFunc("", gameHandler.Get).Methods(http.MethodGet)
	games.HandleFunc("", gameHandler.Delete).Methods(http.MethodDelete)
	games.HandleFunc("/join", gameHandler.Join).Methods(http.MethodPost)
	games.HandleFunc("/start", gameHandler.Start).Methods(http.MethodPost)
	games.HandleFunc("/leave", gameHandler.Leave).Methods(http.MethodPost)

	return r
}

// NewInternalRouter creates the router for operators and the broker.
// It is unauthenticated and must only be bound to a private interface.
func NewInternalRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	statusHandler := handler.NewStatusHandler(cfg.GameController, cfg.TokenManager, cfg.UserManager)
	tokenHandler := handler.NewTokenHandler(cfg.TokenManager)
	userHandler := handler.NewUserHandler(cfg.UserManager, cfg.TokenManager, cfg.LoginLifespan)
	gameHandler := handler.NewGameHandler(cfg.GameController, cfg.UserManager, cfg.Metrics, cfg.Logger)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(genericmw.Logging(cfg.Logger))

	r.HandleFunc("/status", statusHandler.Internal).Methods(http.MethodGet)

	r.HandleFunc("/token", tokenHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/token", tokenHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/token/{token}", tokenHandler.Update).Methods(http.MethodPatch)
	r.HandleFunc("/token/{token}", tokenHandler.Invalidate).Methods(http.MethodDelete)

	r.HandleFunc("/user", userHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/user/{id}", userHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/user/{id}", userHandler.Update).Methods(http.MethodPatch)

	r.HandleFunc("/game", gameHandler.List).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}
