package users

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamerelay/internal/dependencies/mocks"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/testutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, path string, ratio float64) *Manager {
	t.Helper()
	m, err := New(Config{Path: path, ExpungeTriggerRatio: ratio, BcryptCost: bcrypt.MinCost},
		mocks.NewMockClock(epoch), mocks.NewMockRandom(), testutil.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestCreateAndAuthenticate(t *testing.T) {
	m := newManager(t, "", 1)

	u, err := m.CreateUser("alice", "s3cret", "alice@example.com", model.NewPermissions(model.PermissionCreateGame))
	require.NoError(t, err)
	assert.True(t, u.Enabled)
	assert.False(t, u.Verified)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	_, err = m.CreateUser("alice", "other", "", nil)
	assert.ErrorIs(t, err, model.ErrUsernameExists)

	got, err := m.Authenticate("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = m.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	_, err = m.Authenticate("bob", "s3cret")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	require.NoError(t, m.Disable(u.ID))
	_, err = m.Authenticate("alice", "s3cret")
	assert.ErrorIs(t, err, model.ErrUserDisabled)
}

func TestUpdatesAreNoOpsWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.jsonl")
	m := newManager(t, path, 100)

	u, err := m.CreateUser("alice", "pw", "a@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, countLines(t, path))

	require.NoError(t, m.ChangeEmail(u.ID, "a@example.com"))
	require.NoError(t, m.Enable(u.ID))
	require.NoError(t, m.SetVerified(u.ID, false))
	require.NoError(t, m.UpdatePermissions(u.ID, nil))
	require.NoError(t, m.ChangePassword(u.ID, "pw"))
	assert.Equal(t, 1, countLines(t, path))
	assert.Equal(t, 0, m.Stats().Dirty)

	require.NoError(t, m.ChangeEmail(u.ID, "b@example.com"))
	require.NoError(t, m.SetVerified(u.ID, true))
	require.NoError(t, m.UpdatePermissions(u.ID, model.Permissions{model.PermissionJoinGame}))
	require.NoError(t, m.ChangePassword(u.ID, "pw2"))
	assert.Equal(t, 5, countLines(t, path))
	assert.Equal(t, 4, m.Stats().Dirty)

	_, err = m.Authenticate("alice", "pw2")
	assert.NoError(t, err)
}

func TestConcurrentCreatesAndUpdates(t *testing.T) {
	const n = 16
	path := filepath.Join(t.TempDir(), "users.jsonl")
	m := newManager(t, path, 100)

	shared, err := m.CreateUser("shared", "pw", "", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := m.CreateUser(fmt.Sprintf("user-%d", i), "pw", "", nil)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, m.ChangeEmail(u.ID, fmt.Sprintf("%d@example.com", i)))
			assert.NoError(t, m.ChangeEmail(shared.ID, fmt.Sprintf("shared-%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, Stats{Users: n + 1, Dirty: 2 * n}, m.Stats())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), sc.Text())
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 3*n+1, lines)

	inMemory, err := m.GetUser(shared.ID)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reloaded := newManager(t, path, 100)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, Stats{Users: n + 1, Dirty: 2 * n}, reloaded.Stats())
	got, err := reloaded.GetUser(shared.ID)
	require.NoError(t, err)
	assert.Equal(t, inMemory.Email, got.Email, "the last write in memory is the last line on disk")
	for i := 0; i < n; i++ {
		u, err := reloaded.FindByUsername(fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d@example.com", i), u.Email)
	}
}

func TestUnknownUser(t *testing.T) {
	m := newManager(t, "", 1)

	_, err := m.GetUser("nope")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	assert.ErrorIs(t, m.ChangeEmail("nope", "x"), model.ErrUserNotFound)
	assert.ErrorIs(t, m.ChangePassword("nope", "x"), model.ErrUserNotFound)
	assert.ErrorIs(t, m.Disable("nope"), model.ErrUserNotFound)
}

func TestLoadLastRecordWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.jsonl")
	m := newManager(t, path, 100)

	u, err := m.CreateUser("alice", "pw", "", nil)
	require.NoError(t, err)
	require.NoError(t, m.ChangeEmail(u.ID, "new@example.com"))
	require.NoError(t, m.Close())

	reloaded := newManager(t, path, 100)
	require.NoError(t, reloaded.Load())

	got, err := reloaded.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.CreatedAt.Equal(epoch))
	assert.Equal(t, 1, reloaded.Stats().Dirty)

	_, err = reloaded.Authenticate("alice", "pw")
	assert.NoError(t, err)
}

func TestLoadCompactsAboveRatio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.jsonl")
	m := newManager(t, path, 1)

	u, err := m.CreateUser("alice", "pw", "", nil)
	require.NoError(t, err)
	require.NoError(t, m.ChangeEmail(u.ID, "1@example.com"))
	require.NoError(t, m.ChangeEmail(u.ID, "2@example.com"))
	require.NoError(t, m.Close())
	require.Equal(t, 3, countLines(t, path))

	reloaded := newManager(t, path, 1)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, Stats{Users: 1, Dirty: 0, Compactions: 1}, reloaded.Stats())
	assert.Equal(t, 1, countLines(t, path))
	got, err := reloaded.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "2@example.com", got.Email)
}

func TestCheckForExpunge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.jsonl")
	m := newManager(t, path, 1)

	u, err := m.CreateUser("alice", "pw", "", nil)
	require.NoError(t, err)

	require.NoError(t, m.SetVerified(u.ID, true))
	compacted, err := m.CheckForExpunge()
	require.NoError(t, err)
	assert.False(t, compacted)

	require.NoError(t, m.Disable(u.ID))
	compacted, err = m.CheckForExpunge()
	require.NoError(t, err)
	assert.True(t, compacted)
	assert.Equal(t, 1, countLines(t, path))
}

func TestNextAnonymousNumber(t *testing.T) {
	rnd := mocks.NewMockRandom()
	rnd.QueueIntn(10)
	m, err := New(DefaultConfig(), mocks.NewMockClock(epoch), rnd, testutil.NopLogger())
	require.NoError(t, err)

	assert.Equal(t, 134, m.NextAnonymousNumber())
	assert.Equal(t, 135, m.NextAnonymousNumber())
}
