// Package relay is a minimal in-process broker. It registers games and clients
// over a control API and forwards frames between each game's master and players.
package relay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/protocol"
)

var (
	ErrGameExists     = errors.New("game already registered")
	ErrClientConflict = errors.New("client id or token already registered")
	ErrUnknownClient  = errors.New("unknown client")
)

// Hub routes frames for a single game
type Hub struct {
	gameID  model.GameID
	master  string
	clients map[string]*Client // by client id
	tokens  map[string]string  // token -> client id
	started bool
	mu      sync.RWMutex
	logger  *slog.Logger
}

func newHub(gameID model.GameID, logger *slog.Logger) *Hub {
	return &Hub{
		gameID:  gameID,
		clients: make(map[string]*Client),
		tokens:  make(map[string]string),
		logger:  logger.With(slog.String("game_id", string(gameID))),
	}
}

// Add registers a client. It reports false when the same token and id are already registered.
func (h *Hub) Add(token, clientID, alias string, master bool) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.tokens[token]; ok {
		if existing == clientID {
			return false, nil
		}
		return false, ErrClientConflict
	}
	if _, ok := h.clients[clientID]; ok {
		return false, ErrClientConflict
	}

	h.clients[clientID] = newClient(token, clientID, alias)
	h.tokens[token] = clientID
	if master {
		h.master = clientID
	}
	h.logger.Info("relay client registered",
		slog.String("client_id", clientID),
		slog.Bool("master", master),
		slog.Int("total_clients", len(h.clients)))
	return true, nil
}

// Remove unregisters a client and tells the master it left
func (h *Hub) Remove(token, clientID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok || c.token != token {
		return ErrUnknownClient
	}
	delete(h.clients, clientID)
	delete(h.tokens, token)
	c.close()

	if m, ok := h.clients[h.master]; ok {
		h.push(m, protocol.Left{Envelope: protocol.To(clientID)})
	}
	h.logger.Info("relay client unregistered",
		slog.String("client_id", clientID),
		slog.Int("total_clients", len(h.clients)))
	return nil
}

// Start marks the game as started
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
}

// Started reports whether Start was called
func (h *Hub) Started() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// ClientByToken finds the client a stream token belongs to
func (h *Hub) ClientByToken(token string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.tokens[token]
	if !ok {
		return nil, false
	}
	return h.clients[id], true
}

// Route delivers a frame sent by from. Frames from players reach the master
// stamped with the sender's id; frames from the master reach the player named
// by the frame's client id.
func (h *Hub) Route(from *Client, f protocol.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[from.id] != from {
		return
	}
	if from.id == h.master {
		to, ok := h.clients[f.ClientID]
		if !ok {
			h.logger.Warn("relay frame dropped - no such client",
				slog.String("type", f.Type),
				slog.String("client_id", f.ClientID))
			return
		}
		to.inbox.Push(f)
		return
	}

	to, ok := h.clients[h.master]
	if !ok {
		h.logger.Warn("relay frame dropped - no master", slog.String("type", f.Type))
		return
	}
	f.ClientID = from.id
	to.inbox.Push(f)
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) push(to *Client, m protocol.Message) {
	f, err := protocol.NewFrame(m)
	if err != nil {
		h.logger.Error("relay notice encode failed", slog.String("error", err.Error()))
		return
	}
	to.inbox.Push(f)
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	h.tokens = make(map[string]string)
}

// Manager manages hubs for all games
type Manager struct {
	hubs   map[model.GameID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewManager creates a new Manager
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		hubs:   make(map[model.GameID]*Hub),
		logger: logger.With(slog.String("component", "relay")),
	}
}

// CreateHub registers a game with its master
func (m *Manager) CreateHub(gameID model.GameID, masterToken, masterID, alias string) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hubs[gameID]; ok {
		return nil, ErrGameExists
	}
	hub := newHub(gameID, m.logger)
	if _, err := hub.Add(masterToken, masterID, alias, true); err != nil {
		return nil, err
	}
	m.hubs[gameID] = hub
	m.logger.Info("relay hub created", slog.String("game_id", string(gameID)))
	return hub, nil
}

// GetHub returns the hub for a game, or nil if it doesn't exist
func (m *Manager) GetHub(gameID model.GameID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[gameID]
}

// RemoveHub removes a hub and ends all of its streams
func (m *Manager) RemoveHub(gameID model.GameID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[gameID]
	if !ok {
		return false
	}
	hub.close()
	delete(m.hubs, gameID)
	m.logger.Info("relay hub removed", slog.String("game_id", string(gameID)))
	return true
}

// HubCount returns the number of registered games
func (m *Manager) HubCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}
