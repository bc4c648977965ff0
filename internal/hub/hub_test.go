package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamerelay/internal/api/response"
	"github.com/mcoot/gamerelay/internal/config"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	v := config.New()
	v.Set("external.host", "127.0.0.1")
	v.Set("external.port", 0)
	v.Set("internal.port", 0)
	v.Set("broker.server_port", 0)
	v.Set("broker.internal_port", 0)
	v.Set("relay.local", true)
	v.Set("tokens.file", filepath.Join(dir, "tokens.jsonl"))
	v.Set("users.file", filepath.Join(dir, "users.jsonl"))
	v.Set("users.bcrypt_cost", 4)
	v.Set("expunge_interval", "20ms")
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	return cfg
}

func getStatus(t *testing.T, addr string) response.Status {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status response.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func TestHubServesAndStops(t *testing.T) {
	h, err := New(testConfig(t), testutil.NopLogger())
	require.NoError(t, err)
	require.NotNil(t, h.Relay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	external := getStatus(t, h.ExternalAddr())
	assert.Equal(t, "ok", external.Status)
	assert.Nil(t, external.Tokens)

	_, err = h.App.TokenManager.CreateToken(time.Hour, model.NewPermissions(model.PermissionCreateGame), "", false)
	require.NoError(t, err)

	internal := getStatus(t, h.InternalAddr())
	require.NotNil(t, internal.Tokens)
	assert.Equal(t, 1, *internal.Tokens)
	assert.Equal(t, 0, *internal.Games)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestExpungeTickerCompacts(t *testing.T) {
	h, err := New(testConfig(t), testutil.NopLogger())
	require.NoError(t, err)

	tok, err := h.App.TokenManager.CreateToken(time.Hour, nil, "", false)
	require.NoError(t, err)
	require.NoError(t, h.App.TokenManager.InvalidateToken(tok.ID))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return h.App.TokenManager.Stats().Compactions == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSecondHubOnSameJournalFails(t *testing.T) {
	cfg := testConfig(t)
	h, err := New(cfg, testutil.NopLogger())
	require.NoError(t, err)

	_, err = New(cfg, testutil.NopLogger())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Run(ctx))
}
