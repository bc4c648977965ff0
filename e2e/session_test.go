package e2e_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamerelay/internal/api/request"
	"github.com/mcoot/gamerelay/internal/client"
	"github.com/mcoot/gamerelay/internal/config"
	"github.com/mcoot/gamerelay/internal/hub"
	"github.com/mcoot/gamerelay/internal/protocol"
	"github.com/mcoot/gamerelay/internal/testutil"
	"github.com/mcoot/gamerelay/internal/transport"
)

const receiveTimeout = 5 * time.Second

// SessionSuite runs a hub with an in-process relay and drives it the way game
// programs do: over the external API and the relay stream
type SessionSuite struct {
	suite.Suite
	hub     *hub.Hub
	cancel  context.CancelFunc
	done    chan error
	admin   *client.Client
	players []*client.Client
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	dir := s.T().TempDir()
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
	cfg, err := config.Load(v, "")
	s.Require().NoError(err)

	s.hub, err = hub.New(cfg, testutil.NopLogger())
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.hub.Run(ctx) }()

	s.admin = client.New("http://"+s.hub.InternalAddr(), "", client.WithLogger(testutil.NopLogger()))
}

func (s *SessionSuite) TearDownTest() {
	for _, c := range s.players {
		c.StopStream(2 * time.Second)
	}
	s.players = nil

	s.cancel()
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("hub did not stop")
	}
}

// player returns a client holding a fresh token with perms
func (s *SessionSuite) player(perms string) *client.Client {
	tok, err := s.admin.CreateToken(context.Background(), request.CreateTokenRequest{
		Lifespan:    3600,
		Permissions: perms,
		Note:        "e2e",
	})
	s.Require().NoError(err)

	c := client.New("http://"+s.hub.ExternalAddr(), tok.Token,
		client.WithLogger(testutil.NopLogger()),
		client.WithStreamOptions(transport.WithBackoff(10*time.Millisecond, 100*time.Millisecond)),
	)
	s.players = append(s.players, c)
	return c
}

func (s *SessionSuite) receive(c *client.Client) protocol.Message {
	m, ok := c.Receive(true, receiveTimeout)
	s.Require().True(ok, "no message within %s", receiveTimeout)
	return m
}

func (s *SessionSuite) TestMasterAndTwoPlayers() {
	ctx := context.Background()

	master := s.player("CREATE_GAME")
	a := s.player("JOIN_GAME")
	b := s.player("JOIN_GAME")

	created, err := master.CreateGame(ctx, "e2e", "", nil)
	s.Require().NoError(err)
	s.Equal("01", created.Player.PlayerID)
	s.NotEmpty(created.URL)

	joinedA, err := a.JoinGame(ctx, created.GameID, "")
	s.Require().NoError(err)
	s.Equal("02", joinedA.Player.PlayerID)
	s.Equal(created.URL, joinedA.URL)

	joinedB, err := b.JoinGame(ctx, created.GameID, "")
	s.Require().NoError(err)
	s.Equal("03", joinedB.Player.PlayerID)

	started, err := master.StartGame(ctx)
	s.Require().NoError(err)
	s.Equal("started", started.State)
	s.Len(started.Players, 3)

	for _, c := range []*client.Client{master, a, b} {
		s.Require().NoError(c.StartStream())
	}

	sent := time.Now()
	s.Require().NoError(master.Send(protocol.NewPong(protocol.To("02"), sent)))

	s.Require().NoError(a.Send(protocol.Hello{Envelope: protocol.To(protocol.DefaultClientID)}))
	s.Require().NoError(a.Send(protocol.NewPing(protocol.To(protocol.DefaultClientID), sent)))

	m := s.receive(master)
	s.Equal(protocol.TypeHello, m.Type())
	s.Equal("02", m.Routing().ClientID)

	m = s.receive(master)
	s.Require().Equal(protocol.TypePing, m.Type())
	s.Equal("02", m.Routing().ClientID)
	s.Equal(sent.UnixMilli(), m.(protocol.Ping).Time.UnixMilli())

	s.Require().NoError(b.Send(protocol.NewPing(protocol.To(protocol.DefaultClientID), sent)))
	m = s.receive(master)
	s.Equal(protocol.TypePing, m.Type())
	s.Equal("03", m.Routing().ClientID)

	m = s.receive(a)
	s.Require().Equal(protocol.TypePong, m.Type())
	s.Equal("02", m.Routing().ClientID)
	s.Equal(sent.UnixMilli(), m.(protocol.Pong).Time.UnixMilli())

	// B got nothing addressed to it
	_, ok := b.Receive(false, 0)
	s.False(ok)
}

func (s *SessionSuite) TestLeavingPlayerIsAnnouncedToMaster() {
	ctx := context.Background()

	master := s.player("CREATE_GAME")
	a := s.player("JOIN_GAME")

	created, err := master.CreateGame(ctx, "e2e", "", map[string]any{"min_players": 1})
	s.Require().NoError(err)
	_, err = a.JoinGame(ctx, created.GameID, "alice")
	s.Require().NoError(err)

	s.Require().NoError(master.StartStream())
	s.Require().NoError(a.LeaveGame(ctx))

	m := s.receive(master)
	s.Equal(protocol.TypeLeft, m.Type())
	s.Equal("02", m.Routing().ClientID)

	g, err := master.GetGame(ctx, created.GameID)
	s.Require().NoError(err)
	s.Len(g.Players, 1)

	s.Require().NoError(master.DeleteGame(ctx))
	_, err = master.GetGame(ctx, created.GameID)
	var apiErr *client.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(404, apiErr.StatusCode)
}

func (s *SessionSuite) TestLoginThenCreate() {
	ctx := context.Background()
	_, err := s.admin.CreateUser(ctx, request.CreateUserRequest{
		Username:    "carol",
		Password:    "pw-carol",
		Permissions: "CREATE_GAME",
	})
	s.Require().NoError(err)

	c := client.New("http://"+s.hub.ExternalAddr(), "", client.WithLogger(testutil.NopLogger()))
	login, err := c.Login(ctx, "carol", "pw-carol")
	s.Require().NoError(err)
	s.Equal(login.Token, c.Token())

	created, err := c.CreateGame(ctx, "carol's game", "", nil)
	s.Require().NoError(err)
	s.Equal("carol", created.Player.Alias)
}
