// Package users keeps registered accounts in an append-only users file.
package users

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/dependencies/random"
	"github.com/mcoot/gamerelay/internal/journal"
	"github.com/mcoot/gamerelay/internal/model"
)

const (
	idBytes = 12

	anonymousBaseMin = 123
	anonymousBaseMax = 5428
)

// Config holds configuration for the user manager
type Config struct {
	// Path is the users file. Empty keeps users in memory only.
	Path                string
	ExpungeTriggerRatio float64
	// BcryptCost defaults to bcrypt.DefaultCost when zero
	BcryptCost int
}

// DefaultConfig returns default user manager configuration
func DefaultConfig() Config {
	return Config{ExpungeTriggerRatio: 1, BcryptCost: bcrypt.DefaultCost}
}

// Stats describes the manager's bookkeeping
type Stats struct {
	Users       int
	Dirty       int
	Compactions int
}

// Manager owns the user set and its journal
type Manager struct {
	journal *journal.Journal
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	ratio   float64
	cost    int

	mu          sync.Mutex
	users       map[model.UserID]*model.User
	dirty       int
	compactions int
	anonymous   int
}

// New creates a user manager. Call Load to read existing users.
func New(cfg Config, clk clock.Clock, rnd random.Random, logger *slog.Logger) (*Manager, error) {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	m := &Manager{
		clock:     clk,
		random:    rnd,
		logger:    logger.With(slog.String("component", "users")),
		ratio:     cfg.ExpungeTriggerRatio,
		cost:      cost,
		users:     make(map[model.UserID]*model.User),
		anonymous: anonymousBaseMin + rnd.Intn(anonymousBaseMax-anonymousBaseMin+1),
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

// Close releases the users file
func (m *Manager) Close() error {
	if m.journal == nil {
		return nil
	}
	return m.journal.Close()
}

// CreateUser registers a new enabled, unverified user
func (m *Manager) CreateUser(username, password, email string, perms model.Permissions) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findLocked(username) != nil {
		return model.User{}, model.ErrUsernameExists
	}

	u := &model.User{
		ID:           m.newIDLocked(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		Permissions:  model.NewPermissions(perms...),
		Enabled:      true,
		CreatedAt:    m.clock.Now(),
	}
	if err := m.persistLocked(u); err != nil {
		return model.User{}, err
	}
	m.users[u.ID] = u

	m.logger.Info("user created", slog.String("user_id", string(u.ID)), slog.String("username", username))
	return *u, nil
}

// GetUser returns the user with the given id
func (m *Manager) GetUser(id model.UserID) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return *u, nil
}

// FindByUsername returns the user registered under username
func (m *Manager) FindByUsername(username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.findLocked(username)
	if u == nil {
		return model.User{}, model.ErrUserNotFound
	}
	return *u, nil
}

// Authenticate checks a username and password pair
func (m *Manager) Authenticate(username, password string) (model.User, error) {
	u, err := m.FindByUsername(username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return model.User{}, model.ErrInvalidCredentials
	}
	if !u.Enabled {
		return model.User{}, model.ErrUserDisabled
	}
	return u, nil
}

// ChangePassword replaces the user's password unless it is unchanged
func (m *Manager) ChangePassword(id model.UserID, password string) error {
	current, err := m.GetUser(id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(current.PasswordHash), []byte(password)) == nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return m.update(id, func(u *model.User) bool {
		u.PasswordHash = string(hash)
		return true
	})
}

// ChangeEmail updates the user's email
func (m *Manager) ChangeEmail(id model.UserID, email string) error {
	return m.update(id, func(u *model.User) bool {
		if u.Email == email {
			return false
		}
		u.Email = email
		return true
	})
}

// UpdatePermissions replaces the user's permission set
func (m *Manager) UpdatePermissions(id model.UserID, perms model.Permissions) error {
	perms = model.NewPermissions(perms...)
	return m.update(id, func(u *model.User) bool {
		if u.Permissions.Equal(perms) {
			return false
		}
		u.Permissions = perms
		return true
	})
}

// Enable allows the user to log in
func (m *Manager) Enable(id model.UserID) error {
	return m.setEnabled(id, true)
}

// Disable stops the user from logging in
func (m *Manager) Disable(id model.UserID) error {
	return m.setEnabled(id, false)
}

func (m *Manager) setEnabled(id model.UserID, enabled bool) error {
	return m.update(id, func(u *model.User) bool {
		if u.Enabled == enabled {
			return false
		}
		u.Enabled = enabled
		return true
	})
}

// SetVerified marks the user's email as verified or not
func (m *Manager) SetVerified(id model.UserID, verified bool) error {
	return m.update(id, func(u *model.User) bool {
		if u.Verified == verified {
			return false
		}
		u.Verified = verified
		return true
	})
}

// update applies fn to a copy of the user and persists it when fn reports a change
func (m *Manager) update(id model.UserID, fn func(u *model.User) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	updated := *u
	if !fn(&updated) {
		return nil
	}
	if err := m.persistLocked(&updated); err != nil {
		return err
	}
	*u = updated
	if m.journal != nil {
		m.dirty++
	}
	return nil
}

// Users returns a snapshot of all users, oldest first
func (m *Manager) Users() []model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sortUsers(out)
	return out
}

// NextAnonymousNumber returns a fresh number for naming users without an account
func (m *Manager) NextAnonymousNumber() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anonymous++
	return m.anonymous
}

// Stats returns the user count, dirty line count and compactions so far
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Users: len(m.users), Dirty: m.dirty, Compactions: m.compactions}
}

// Load rebuilds the user set from the users file; the last line for a user wins
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.journal == nil {
		return nil
	}

	loaded := make(map[model.UserID]*model.User)
	dirty := 0
	err := m.journal.Replay(func(line []byte) error {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			m.logger.Warn("skipping unreadable user record", slog.String("error", err.Error()))
			dirty++
			return nil
		}
		u, err := rec.toModel()
		if err != nil {
			m.logger.Warn("skipping invalid user record", slog.String("error", err.Error()))
			dirty++
			return nil
		}
		if _, seen := loaded[u.ID]; seen {
			dirty++
		}
		loaded[u.ID] = &u
		return nil
	})
	if err != nil {
		return err
	}

	m.users = loaded
	m.dirty = dirty
	m.logger.Info("users loaded", slog.Int("users", len(loaded)), slog.Int("dirty", dirty))

	if m.shouldCompactLocked() {
		return m.compactLocked()
	}
	return nil
}

// CheckForExpunge compacts the users file when the dirty ratio exceeds the trigger
func (m *Manager) CheckForExpunge() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	if len(m.users) == 0 {
		return true
	}
	return float64(m.dirty)/float64(len(m.users)) > m.ratio
}

func (m *Manager) compactLocked() error {
	all := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	sortUsers(all)

	records := make([]any, len(all))
	for i, u := range all {
		records[i] = recordFromModel(u)
	}
	if err := m.journal.Rewrite(records); err != nil {
		return fmt.Errorf("compact users file: %w", err)
	}

	m.logger.Info("users file compacted", slog.Int("dropped", m.dirty), slog.Int("kept", len(all)))
	m.dirty = 0
	m.compactions++
	return nil
}

func (m *Manager) persistLocked(u *model.User) error {
	if m.journal == nil {
		return nil
	}
	if err := m.journal.Append(recordFromModel(*u)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

func (m *Manager) findLocked(username string) *model.User {
	for _, u := range m.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (m *Manager) newIDLocked() model.UserID {
	for {
		id := model.UserID(base64.RawURLEncoding.EncodeToString(m.random.Bytes(idBytes)))
		if _, taken := m.users[id]; !taken {
			return id
		}
	}
}

func sortUsers(us []model.User) {
	sort.Slice(us, func(i, j int) bool {
		if us[i].CreatedAt.Equal(us[j].CreatedAt) {
			return us[i].ID < us[j].ID
		}
		return us[i].CreatedAt.Before(us[j].CreatedAt)
	})
}
