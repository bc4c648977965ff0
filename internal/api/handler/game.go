package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamerelay/internal/api/middleware"
	"github.com/mcoot/gamerelay/internal/api/request"
	"github.com/mcoot/gamerelay/internal/api/response"
	"github.com/mcoot/gamerelay/internal/metrics"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/services/game"
	"github.com/mcoot/gamerelay/internal/services/users"
)

// GameHandler handles game-related endpoints
type GameHandler struct {
	gameController *game.Controller
	userManager    *users.Manager
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewGameHandler creates a new game handler
func NewGameHandler(
	gameController *game.Controller,
	userManager *users.Manager,
	m *metrics.Metrics,
	logger *slog.Logger,
) *GameHandler {
	return &GameHandler{
		gameController: gameController,
		userManager:    userManager,
		metrics:        m,
		logger:         logger,
	}
}

// Create handles POST /game
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	token := middleware.MustGetToken(r.Context())

	var req request.CreateGameRequest
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}
	if req.Name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	opts, err := model.ParseGameOptions(req.Options)
	if err != nil {
		WriteError(w, err)
		return
	}

	master := model.Player{Token: string(token.ID), Alias: h.aliasFor(token, req.Alias)}
	g, err := h.gameController.CreateGame(r.Context(), req.Name, master, opts)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.metrics.GameEvent("created")

	response.JSON(w, http.StatusCreated, response.CreateGameResponse{
		GameID:       string(g.ID),
		GameName:     g.Name,
		URL:          h.gameController.GameURL(g),
		MasterPlayer: response.OwnPlayerFromModel(g.Master),
	})
}

// Join handles POST /game/{id}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	token := middleware.MustGetToken(r.Context())
	gameID := model.GameID(mux.Vars(r)["id"])

	var req request.JoinGameRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	g, err := h.gameController.GetGame(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}

	alias := req.Alias
	if _, joined := g.PlayerByToken(string(token.ID)); !joined {
		alias = h.aliasFor(token, req.Alias)
	}

	p, added, err := h.gameController.AddPlayer(r.Context(), gameID, model.Player{Token: string(token.ID), Alias: alias})
	if err != nil {
		WriteError(w, err)
		return
	}
	if added {
		h.metrics.PlayerJoined()
	}

	response.OK(w, response.JoinGameResponse{
		GameID:   string(g.ID),
		GameName: g.Name,
		URL:      h.gameController.GameURL(g),
		Player:   response.OwnPlayerFromModel(p),
	})
}

// Start handles POST /game/{id}/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	token := middleware.MustGetToken(r.Context())
	gameID := model.GameID(mux.Vars(r)["id"])

	if err := h.requireMaster(r, gameID, token); err != nil {
		WriteError(w, err)
		return
	}

	g, err := h.gameController.StartGame(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.metrics.GameEvent("started")

	response.OK(w, response.GameFromModel(g, h.gameController.GameURL(g)))
}

// Get handles GET /game/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["id"])

	g, err := h.gameController.GetGame(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.GameFromModel(g, h.gameController.GameURL(g)))
}

// Leave handles POST /game/{id}/leave
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	token := middleware.MustGetToken(r.Context())
	gameID := model.GameID(mux.Vars(r)["id"])

	g, err := h.gameController.GetGame(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}
	p, ok := g.PlayerByToken(string(token.ID))
	if !ok {
		WriteError(w, model.ErrPlayerNotFound)
		return
	}

	if err := h.gameController.RemovePlayer(r.Context(), gameID, p.ID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Delete handles DELETE /game/{id}
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token := middleware.MustGetToken(r.Context())
	gameID := model.GameID(mux.Vars(r)["id"])

	if err := h.requireMaster(r, gameID, token); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.gameController.RemoveGame(r.Context(), gameID); err != nil {
		WriteError(w, err)
		return
	}
	h.metrics.GameEvent("removed")

	response.NoContent(w)
}

// List handles GET /game on the internal listener
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameController.ListGames(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := make([]response.Game, len(games))
	for i, g := range games {
		resp[i] = response.GameFromModel(g, h.gameController.GameURL(g))
	}
	response.OK(w, resp)
}

func (h *GameHandler) requireMaster(r *http.Request, gameID model.GameID, token *model.Token) error {
	g, err := h.gameController.GetGame(r.Context(), gameID)
	if err != nil {
		return err
	}
	if !g.IsMaster(string(token.ID)) {
		return model.ErrNotMaster
	}
	return nil
}

// aliasFor picks the alias a caller plays under when it did not ask for one
func (h *GameHandler) aliasFor(token *model.Token, requested string) string {
	if requested != "" {
		return requested
	}
	if token.UserID != "" {
		if u, err := h.userManager.GetUser(token.UserID); err == nil {
			return u.Username
		}
	}
	return fmt.Sprintf("anonymous%d", h.userManager.NextAnonymousNumber())
}
