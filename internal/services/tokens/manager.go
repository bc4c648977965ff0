// Package tokens issues and tracks the bearer tokens callers present to the hub.
package tokens

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/dependencies/random"
	"github.com/mcoot/gamerelay/internal/journal"
	"github.com/mcoot/gamerelay/internal/model"
)

// idBytes is the amount of entropy in a token id
const idBytes = 12

// Config holds configuration for the token manager
type Config struct {
	// Path is the token file. Empty keeps every token in memory only.
	Path string
	// ExpungeTriggerRatio is the dirty/live ratio above which the file is compacted
	ExpungeTriggerRatio float64
}

// DefaultConfig returns default token manager configuration
func DefaultConfig() Config {
	return Config{ExpungeTriggerRatio: 1}
}

// Stats describes the manager's bookkeeping
type Stats struct {
	Live        int
	Dirty       int
	Compactions int
}

// Manager owns the live token set and its journal.
// dirty counts journal lines a compaction would drop.
type Manager struct {
	journal *journal.Journal
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	ratio   float64

	mu          sync.Mutex
	tokens      map[model.TokenID]*model.Token
	dirty       int
	compactions int
}

// New creates a token manager, locking the token file when one is configured.
// Call Load to read existing tokens.
func New(cfg Config, clk clock.Clock, rnd random.Random, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		clock:  clk,
		random: rnd,
		logger: logger.With(slog.String("component", "tokens")),
		ratio:  cfg.ExpungeTriggerRatio,
		tokens: make(map[model.TokenID]*model.Token),
	}
	if cfg.Path != "" {
		j, err := journal.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		m.journal = j
	}
	return m, nil
}

// Close releases the token file
func (m *Manager) Close() error {
	if m.journal == nil {
		return nil
	}
	return m.journal.Close()
}

// CreateToken issues a token. Durable tokens are on disk before this returns.
func (m *Manager) CreateToken(lifespan time.Duration, perms model.Permissions, note string, temporary bool) (model.Token, error) {
	return m.create("", lifespan, perms, note, temporary)
}

// CreateUserToken issues a durable token tied to a user
func (m *Manager) CreateUserToken(userID model.UserID, lifespan time.Duration, perms model.Permissions, note string) (model.Token, error) {
	return m.create(userID, lifespan, perms, note, false)
}

func (m *Manager) create(userID model.UserID, lifespan time.Duration, perms model.Permissions, note string, temporary bool) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok := &model.Token{
		ID:          m.newIDLocked(),
		CreatedAt:   m.clock.Now(),
		Lifespan:    lifespan,
		Permissions: model.NewPermissions(perms...),
		Note:        note,
		UserID:      userID,
		Temporary:   temporary,
		Valid:       true,
	}

	if err := m.persistLocked(tok); err != nil {
		return model.Token{}, err
	}
	m.tokens[tok.ID] = tok

	m.logger.Debug("token created",
		slog.String("note", note),
		slog.Bool("temporary", temporary),
		slog.Duration("lifespan", lifespan),
	)
	return *tok, nil
}

// GetToken returns the tracked token with the given id, valid or not
func (m *Manager) GetToken(id model.TokenID) (model.Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[id]
	if !ok {
		return model.Token{}, false
	}
	return *tok, true
}

// Authorize returns the token if it is valid now and holds any of the given permissions
func (m *Manager) Authorize(id model.TokenID, anyOf ...string) (model.Token, error) {
	tok, ok := m.GetToken(id)
	if !ok {
		return model.Token{}, model.ErrTokenNotFound
	}
	if !tok.IsValidAt(m.clock.Now()) {
		return model.Token{}, model.ErrTokenExpired
	}
	if !tok.Permissions.HasAny(anyOf...) {
		return model.Token{}, model.ErrInsufficientPermissions
	}
	return tok, nil
}

// InvalidateToken revokes a token and drops it from the live set
func (m *Manager) InvalidateToken(id model.TokenID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[id]
	if !ok {
		return model.ErrTokenNotFound
	}

	revoked := *tok
	revoked.Valid = false
	if err := m.persistLocked(&revoked); err != nil {
		return err
	}
	tok.Valid = false
	delete(m.tokens, id)
	if !tok.Temporary && m.journal != nil {
		// the original line and the revocation line
		m.dirty += 2
	}
	return nil
}

// UpdateNote changes a token's note
func (m *Manager) UpdateNote(id model.TokenID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[id]
	if !ok {
		return model.ErrTokenNotFound
	}
	if tok.Note == note {
		return nil
	}

	updated := *tok
	updated.Note = note
	if err := m.persistLocked(&updated); err != nil {
		return err
	}
	tok.Note = note
	if !tok.Temporary && m.journal != nil {
		m.dirty++
	}
	return nil
}

// Tokens returns a snapshot of the tracked tokens, oldest first
func (m *Manager) Tokens() []model.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Token, 0, len(m.tokens))
	for _, tok := range m.tokens {
		out = append(out, *tok)
	}
	sortTokens(out)
	return out
}

// Stats returns the live token count, dirty line count and compactions so far
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Live: len(m.tokens), Dirty: m.dirty, Compactions: m.compactions}
}

// Load rebuilds the live set from the token file. The last line for an id wins;
// superseded, expired, revoked and unreadable lines are counted as dirty.
// Temporary tokens already in memory are kept.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := make(map[model.TokenID]*model.Token)
	dirty := 0

	if m.journal != nil {
		err := m.journal.Replay(func(line []byte) error {
			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				m.logger.Warn("skipping unreadable token record", slog.String("error", err.Error()))
				dirty++
				return nil
			}
			tok, err := rec.ToModel()
			if err != nil {
				m.logger.Warn("skipping invalid token record", slog.String("error", err.Error()))
				dirty++
				return nil
			}
			if _, seen := loaded[tok.ID]; seen {
				dirty++
			}
			loaded[tok.ID] = &tok
			return nil
		})
		if err != nil {
			return err
		}
	}

	now := m.clock.Now()
	for id, tok := range loaded {
		if tok.Temporary || !tok.IsValidAt(now) {
			delete(loaded, id)
			dirty++
		}
	}
	for id, tok := range m.tokens {
		if tok.Temporary && tok.IsValidAt(now) {
			loaded[id] = tok
		}
	}

	m.tokens = loaded
	m.dirty = dirty
	m.logger.Info("tokens loaded", slog.Int("live", len(loaded)), slog.Int("dirty", dirty))

	if m.shouldCompactLocked() {
		return m.compactLocked()
	}
	return nil
}

// CheckForExpunge drops expired tokens and compacts the token file when the
// dirty ratio exceeds the trigger. It reports whether a compaction ran.
func (m *Manager) CheckForExpunge() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for id, tok := range m.tokens {
		if tok.IsValidAt(now) {
			continue
		}
		delete(m.tokens, id)
		if !tok.Temporary && m.journal != nil {
			m.dirty++
		}
	}

	if !m.shouldCompactLocked() {
		return false, nil
	}
	if err := m.compactLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) shouldCompactLocked() bool {
	if m.journal == nil || m.dirty == 0 {
		return false
	}
	durable := 0
	for _, tok := range m.tokens {
		if !tok.Temporary {
			durable++
		}
	}
	if durable == 0 {
		return true
	}
	return float64(m.dirty)/float64(durable) > m.ratio
}

func (m *Manager) compactLocked() error {
	kept := make([]model.Token, 0, len(m.tokens))
	for _, tok := range m.tokens {
		if !tok.Temporary && tok.Valid {
			kept = append(kept, *tok)
		}
	}
	sortTokens(kept)

	records := make([]any, len(kept))
	for i, tok := range kept {
		records[i] = RecordFromModel(tok)
	}
	if err := m.journal.Rewrite(records); err != nil {
		return fmt.Errorf("compact token file: %w", err)
	}

	m.logger.Info("token file compacted", slog.Int("dropped", m.dirty), slog.Int("kept", len(kept)))
	m.dirty = 0
	m.compactions++
	return nil
}

func (m *Manager) persistLocked(tok *model.Token) error {
	if tok.Temporary || m.journal == nil {
		return nil
	}
	if err := m.journal.Append(RecordFromModel(*tok)); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

func (m *Manager) newIDLocked() model.TokenID {
	for {
		id := model.TokenID(base64.RawURLEncoding.EncodeToString(m.random.Bytes(idBytes)))
		if _, taken := m.tokens[id]; !taken {
			return id
		}
	}
}

func sortTokens(toks []model.Token) {
	sort.Slice(toks, func(i, j int) bool {
		if toks[i].CreatedAt.Equal(toks[j].CreatedAt) {
			return toks[i].ID < toks[j].ID
		}
		return toks[i].CreatedAt.Before(toks[j].CreatedAt)
	})
}
