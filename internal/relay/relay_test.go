package relay

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamerelay/internal/broker"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/protocol"
	"github.com/mcoot/gamerelay/internal/testutil"
	"github.com/mcoot/gamerelay/internal/transport"
)

type RelaySuite struct {
	suite.Suite
	relay   *Relay
	control *httptest.Server
	streams *httptest.Server
	srv     model.Server
	broker  *broker.Client
	ctx     context.Context
	opened  []*transport.Stream
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.opened = nil
	s.relay = New(testutil.NopLogger())
	s.control = httptest.NewServer(s.relay.ControlHandler())
	s.streams = httptest.NewServer(s.relay.StreamHandler())
	s.broker = broker.New(nil, testutil.NopLogger())

	host, internalPort := s.hostPort(s.control)
	_, serverPort := s.hostPort(s.streams)
	s.srv = model.Server{Host: host, ServerPort: serverPort, InternalPort: internalPort}
}

func (s *RelaySuite) TearDownTest() {
	for _, st := range s.opened {
		st.Stop(2 * time.Second)
	}
	s.streams.CloseClientConnections()
	s.streams.Close()
	s.control.Close()
}

func (s *RelaySuite) hostPort(srv *httptest.Server) (string, int) {
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	s.Require().NoError(err)
	n, err := strconv.Atoi(port)
	s.Require().NoError(err)
	return host, n
}

func (s *RelaySuite) newGame() *model.Game {
	g := &model.Game{
		ID:      "G_relay",
		Name:    "relay",
		Options: model.DefaultGameOptions(),
		Master:  model.Player{ID: "01", Token: "master-tok", Alias: "host", IsMaster: true, GameID: "G_relay"},
	}
	s.Require().NoError(s.broker.CreateGame(s.ctx, s.srv, g))
	return g
}

func (s *RelaySuite) stream(g *model.Game, token string) *transport.Stream {
	st := transport.New(s.srv.GameURL(g.ID), token,
		transport.WithLogger(testutil.NopLogger()),
		transport.WithBackoff(5*time.Millisecond, 20*time.Millisecond),
	)
	st.Start()
	s.opened = append(s.opened, st)
	return st
}

func (s *RelaySuite) TestControlCalls() {
	g := s.newGame()

	err := s.broker.CreateGame(s.ctx, s.srv, g)
	s.ErrorIs(err, model.ErrControlCallFailed)

	alice := model.Player{ID: "02", Token: "a-tok", Alias: "alice"}
	s.Require().NoError(s.broker.AddPlayer(s.ctx, s.srv, g.ID, alice))
	// a repeated registration answers 304, which counts as success
	s.Require().NoError(s.broker.AddPlayer(s.ctx, s.srv, g.ID, alice))

	s.Require().NoError(s.broker.StartGame(s.ctx, s.srv, g.ID))
	hub := s.relay.Manager().GetHub(g.ID)
	s.Require().NotNil(hub)
	s.True(hub.Started())
	s.Equal(2, hub.ClientCount())

	s.Require().NoError(s.broker.RemovePlayer(s.ctx, s.srv, g.ID, alice))
	s.ErrorIs(s.broker.RemovePlayer(s.ctx, s.srv, g.ID, alice), model.ErrControlCallFailed)

	s.Require().NoError(s.broker.RemoveGame(s.ctx, s.srv, g.ID))
	s.ErrorIs(s.broker.StartGame(s.ctx, s.srv, g.ID), model.ErrControlCallFailed)
}

func (s *RelaySuite) TestFramesFlowBetweenMasterAndPlayer() {
	g := s.newGame()
	s.Require().NoError(s.broker.AddPlayer(s.ctx, s.srv, g.ID, model.Player{ID: "02", Token: "a-tok", Alias: "alice"}))

	master := s.stream(g, "master-tok")
	alice := s.stream(g, "a-tok")

	alice.Send(protocol.Hello{})
	msg, ok := master.Receive(true, 5*time.Second)
	s.Require().True(ok)
	s.Equal(protocol.TypeHello, msg.Type())
	s.Equal("02", msg.Routing().ClientID)

	master.Send(protocol.NewPong(protocol.To("02"), time.UnixMilli(1000)))
	msg, ok = alice.Receive(true, 5*time.Second)
	s.Require().True(ok)
	s.Equal(protocol.TypePong, msg.Type())
	s.Equal("02", msg.Routing().ClientID)
}

func (s *RelaySuite) TestFramesWaitForDownloadStream() {
	g := s.newGame()
	s.Require().NoError(s.broker.AddPlayer(s.ctx, s.srv, g.ID, model.Player{ID: "02", Token: "a-tok", Alias: "alice"}))

	alice := s.stream(g, "a-tok")
	alice.Send(protocol.Hello{})

	hub := s.relay.Manager().GetHub(g.ID)
	master, _ := hub.ClientByToken("master-tok")
	s.Eventually(func() bool { return master.Pending() == 1 }, 5*time.Second, 10*time.Millisecond)

	stream := s.stream(g, "master-tok")
	msg, ok := stream.Receive(true, 5*time.Second)
	s.Require().True(ok)
	s.Equal(protocol.TypeHello, msg.Type())
}

func (s *RelaySuite) TestStreamRejectsUnknownToken() {
	g := s.newGame()

	req, err := http.NewRequest(http.MethodGet, s.srv.GameURL(g.ID), nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Token nobody")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, s.srv.GameURL("G_missing"), nil)
	s.Require().NoError(err)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}
