package broker

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/testutil"
)

type call struct {
	method string
	path   string
	body   map[string]any
}

type ClientSuite struct {
	suite.Suite
	server *httptest.Server
	srv    model.Server
	client *Client
	ctx    context.Context

	mu     sync.Mutex
	calls  []call
	status int
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.calls = nil
	s.status = http.StatusOK
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)

		s.mu.Lock()
		s.calls = append(s.calls, call{method: r.Method, path: r.URL.Path, body: body})
		status := s.status
		s.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))

	host, port, err := net.SplitHostPort(s.server.Listener.Addr().String())
	s.Require().NoError(err)
	p, err := strconv.Atoi(port)
	s.Require().NoError(err)
	s.srv = model.Server{Host: host, ServerPort: p, InternalPort: p}

	s.client = New(s.server.Client(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) setStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *ClientSuite) lastCall() call {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.calls)
	return s.calls[len(s.calls)-1]
}

func (s *ClientSuite) TestCreateGame() {
	game := &model.Game{
		ID:      "G_abc",
		Options: model.DefaultGameOptions(),
		Master:  model.Player{ID: model.MasterPlayerID, Token: "tok", Alias: "boss", IsMaster: true},
	}

	s.Require().NoError(s.client.CreateGame(s.ctx, s.srv, game))

	c := s.lastCall()
	s.Equal(http.MethodPost, c.method)
	s.Equal("/game/G_abc", c.path)
	s.Equal("tok", c.body["master_token"])
	s.Equal("01", c.body["client_id"])
	s.Equal("boss", c.body["alias"])
	opts, ok := c.body["options"].(map[string]any)
	s.Require().True(ok)
	s.Equal(float64(2), opts["max_players"])
	s.Equal(false, opts["allow_late_join"])
}

func (s *ClientSuite) TestAddPlayer() {
	p := model.Player{ID: "02", Token: "a-tok", Alias: "a"}
	s.Require().NoError(s.client.AddPlayer(s.ctx, s.srv, "G_abc", p))

	c := s.lastCall()
	s.Equal(http.MethodPost, c.method)
	s.Equal("/game/G_abc/client", c.path)
	s.Equal(map[string]any{"token": "a-tok", "client_id": "02", "alias": "a"}, c.body)
}

func (s *ClientSuite) TestStartRemoveCalls() {
	s.Require().NoError(s.client.StartGame(s.ctx, s.srv, "G_abc"))
	c := s.lastCall()
	s.Equal(http.MethodPut, c.method)
	s.Equal("/game/G_abc/start", c.path)

	s.Require().NoError(s.client.RemovePlayer(s.ctx, s.srv, "G_abc", model.Player{ID: "02", Token: "a-tok"}))
	c = s.lastCall()
	s.Equal(http.MethodDelete, c.method)
	s.Equal("/game/G_abc/client", c.path)
	s.Equal(map[string]any{"token": "a-tok", "client_id": "02"}, c.body)

	s.Require().NoError(s.client.RemoveGame(s.ctx, s.srv, "G_abc"))
	c = s.lastCall()
	s.Equal(http.MethodDelete, c.method)
	s.Equal("/game/G_abc", c.path)
}

func (s *ClientSuite) TestNotModifiedIsSuccess() {
	s.setStatus(http.StatusNotModified)
	s.NoError(s.client.AddPlayer(s.ctx, s.srv, "G_abc", model.Player{ID: "02"}))
}

func (s *ClientSuite) TestErrorStatus() {
	s.setStatus(http.StatusNotFound)
	err := s.client.StartGame(s.ctx, s.srv, "G_abc")
	s.ErrorIs(err, model.ErrControlCallFailed)
	s.Contains(err.Error(), "404")
}

func (s *ClientSuite) TestUnreachable() {
	s.server.Close()
	err := s.client.StartGame(s.ctx, s.srv, "G_abc")
	s.ErrorIs(err, model.ErrControlCallFailed)
}
