package handler

import (
	"net/http"

	"github.com/mcoot/gamerelay/internal/api/response"
	"github.com/mcoot/gamerelay/internal/services/game"
	"github.com/mcoot/gamerelay/internal/services/tokens"
	"github.com/mcoot/gamerelay/internal/services/users"
)

// External handles GET /status on the external listener
func External(w http.ResponseWriter, r *http.Request) {
	response.OK(w, response.Status{Status: "ok"})
}

// StatusHandler reports registry sizes on the internal listener
type StatusHandler struct {
	gameController *game.Controller
	tokenManager   *tokens.Manager
	userManager    *users.Manager
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(gameController *game.Controller, tokenManager *tokens.Manager, userManager *users.Manager) *StatusHandler {
	return &StatusHandler{
		gameController: gameController,
		tokenManager:   tokenManager,
		userManager:    userManager,
	}
}

// Internal handles GET /status on the internal listener
func (h *StatusHandler) Internal(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameController.ListGames(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	gameCount := len(games)
	tokenCount := h.tokenManager.Stats().Live
	userCount := h.userManager.Stats().Users

	response.OK(w, response.Status{
		Status: "ok",
		Games:  &gameCount,
		Tokens: &tokenCount,
		Users:  &userCount,
	})
}
