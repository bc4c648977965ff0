package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamerelay/internal/broker"
	"github.com/mcoot/gamerelay/internal/middleware"
	"github.com/mcoot/gamerelay/internal/model"
)

// Relay serves the control API on one listener and game streams on another
type Relay struct {
	manager *Manager
	logger  *slog.Logger
}

// New creates a relay with no games
func New(logger *slog.Logger) *Relay {
	return &Relay{
		manager: NewManager(logger),
		logger:  logger.With(slog.String("component", "relay")),
	}
}

// Manager exposes the hub registry
func (rl *Relay) Manager() *Manager {
	return rl.manager
}

// ControlHandler serves the calls the hub makes to register games and players
func (rl *Relay) ControlHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(rl.logger, middleware.DefaultPanicHandler))
	r.Use(middleware.Logging(rl.logger))

	r.HandleFunc("/game/{id}", rl.createGame).Methods(http.MethodPost)
	r.HandleFunc("/game/{id}", rl.removeGame).Methods(http.MethodDelete)
	r.HandleFunc("/game/{id}/start", rl.startGame).Methods(http.MethodPut)
	r.HandleFunc("/game/{id}/client", rl.addClient).Methods(http.MethodPost)
	r.HandleFunc("/game/{id}/client", rl.removeClient).Methods(http.MethodDelete)
	return r
}

// StreamHandler serves the chunked upload and download streams of players
func (rl *Relay) StreamHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(rl.logger, middleware.DefaultPanicHandler))
	r.Use(middleware.Logging(rl.logger))

	r.HandleFunc("/game/{id}", rl.upload).Methods(http.MethodPost)
	r.HandleFunc("/game/{id}", rl.download).Methods(http.MethodGet)
	return r
}

func (rl *Relay) createGame(w http.ResponseWriter, r *http.Request) {
	var req broker.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MasterToken == "" || req.ClientID == "" {
		http.Error(w, "master_token and client_id are required", http.StatusBadRequest)
		return
	}

	_, err := rl.manager.CreateHub(gameID(r), req.MasterToken, req.ClientID, req.Alias)
	if errors.Is(err, ErrGameExists) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (rl *Relay) removeGame(w http.ResponseWriter, r *http.Request) {
	if !rl.manager.RemoveHub(gameID(r)) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rl *Relay) startGame(w http.ResponseWriter, r *http.Request) {
	hub := rl.manager.GetHub(gameID(r))
	if hub == nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	hub.Start()
	w.WriteHeader(http.StatusNoContent)
}

func (rl *Relay) addClient(w http.ResponseWriter, r *http.Request) {
	hub := rl.manager.GetHub(gameID(r))
	if hub == nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	var req broker.AddClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.ClientID == "" {
		http.Error(w, "token and client_id are required", http.StatusBadRequest)
		return
	}

	added, err := hub.Add(req.Token, req.ClientID, req.Alias, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if !added {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (rl *Relay) removeClient(w http.ResponseWriter, r *http.Request) {
	hub := rl.manager.GetHub(gameID(r))
	if hub == nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	var req broker.RemoveClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := hub.Remove(req.Token, req.ClientID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rl *Relay) upload(w http.ResponseWriter, r *http.Request) {
	// the reply must not wait for the streamed body to finish
	_ = http.NewResponseController(w).EnableFullDuplex()

	hub, c, ok := rl.authenticate(w, r)
	if !ok {
		return
	}
	serveOutbound(w, r, hub, c, rl.logger)
}

func (rl *Relay) download(w http.ResponseWriter, r *http.Request) {
	_, c, ok := rl.authenticate(w, r)
	if !ok {
		return
	}
	serveInbound(w, r, c, rl.logger)
}

func (rl *Relay) authenticate(w http.ResponseWriter, r *http.Request) (*Hub, *Client, bool) {
	hub := rl.manager.GetHub(gameID(r))
	if hub == nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return nil, nil, false
	}
	c, ok := hub.ClientByToken(streamToken(r))
	if !ok {
		http.Error(w, "unknown token", http.StatusUnauthorized)
		return nil, nil, false
	}
	return hub, c, true
}

func gameID(r *http.Request) model.GameID {
	return model.GameID(mux.Vars(r)["id"])
}

func streamToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	for _, scheme := range []string{"Token ", "Bearer "} {
		if strings.HasPrefix(h, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(h, scheme))
		}
	}
	return ""
}
