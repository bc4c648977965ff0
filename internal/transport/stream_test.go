package transport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamerelay/internal/protocol"
	"github.com/mcoot/gamerelay/internal/testutil"
)

// fakeRelay records outbound frames and serves scripted inbound frames
type fakeRelay struct {
	t *testing.T

	mu       sync.Mutex
	received []protocol.Frame
	auth     []string

	gets  atomic.Int32
	posts atomic.Int32

	// inbound returns the raw bytes to write for the n-th GET (1 based)
	inbound func(n int32) [][]byte
	// holdOpen keeps GET responses open after writing inbound frames
	holdOpen bool
	// status overrides the response code for both methods when non-zero
	status int
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// answering before the streamed body ends must not wait for the body
	_ = http.NewResponseController(w).EnableFullDuplex()

	f.mu.Lock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	status, holdOpen := f.status, f.holdOpen
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	switch r.Method {
	case http.MethodPost:
		f.posts.Add(1)
		for {
			frame, err := protocol.ReadFrame(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			f.mu.Lock()
			f.received = append(f.received, frame)
			f.mu.Unlock()
		}
	case http.MethodGet:
		n := f.gets.Add(1)
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		if f.inbound != nil {
			for _, chunk := range f.inbound(n) {
				_, _ = w.Write(chunk)
				flusher.Flush()
			}
		}
		if holdOpen {
			<-r.Context().Done()
		}
	}
}

func (f *fakeRelay) frames() []protocol.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Frame(nil), f.received...)
}

func startRelay(t *testing.T, relay *fakeRelay) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(relay)
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})
	return srv
}

func newStream(t *testing.T, url string, opts ...Option) *Stream {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.NopLogger()), WithBackoff(5*time.Millisecond, 20*time.Millisecond)}, opts...)
	s := New(url+"/game/G_test", "tok", opts...)
	t.Cleanup(func() { s.Stop(2 * time.Second) })
	return s
}

func encode(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	data, err := protocol.Encode(m)
	require.NoError(t, err)
	return data
}

func TestSendDeliversFramesInOrder(t *testing.T) {
	relay := &fakeRelay{t: t, holdOpen: true}
	srv := startRelay(t, relay)
	s := newStream(t, srv.URL)
	s.Start()

	s.Send(protocol.Hello{Envelope: protocol.To("02")})
	s.Send(protocol.NewHeartbeat(protocol.To("02"), 7))
	s.Send(protocol.PlayerMessage{Envelope: protocol.To("02"), Payload: map[string]any{"n": float64(1)}})

	require.Eventually(t, func() bool { return len(relay.frames()) == 3 }, 5*time.Second, 10*time.Millisecond)

	frames := relay.frames()
	assert.Equal(t, protocol.TypeHello, frames[0].Type)
	assert.Equal(t, protocol.TypeHeartbeat, frames[1].Type)
	assert.Equal(t, protocol.TypePlayerMessage, frames[2].Type)
	assert.Equal(t, "02", frames[0].ClientID)
	assert.Equal(t, 0, s.Pending())

	relay.mu.Lock()
	defer relay.mu.Unlock()
	for _, h := range relay.auth {
		assert.Equal(t, "Token tok", h)
	}
}

func TestInboundSkipsUndecodableFrames(t *testing.T) {
	relay := &fakeRelay{t: t, holdOpen: true}
	relay.inbound = func(n int32) [][]byte {
		if n > 1 {
			return nil
		}
		unknown, _ := protocol.Frame{Type: "ZZZZ", Flags: "  ", ClientID: "01", Body: []byte("?")}.MarshalBinary()
		malformed, _ := protocol.Frame{Type: protocol.TypePlayerMessage, Flags: "  ", ClientID: "01", Body: []byte("{oops")}.MarshalBinary()
		return [][]byte{
			encode(t, protocol.Hello{Envelope: protocol.To("01")}),
			unknown,
			malformed,
			encode(t, protocol.NewPing(protocol.To("01"), time.UnixMilli(42))),
		}
	}
	srv := startRelay(t, relay)
	logger, logs := testutil.BufferLogger()
	s := newStream(t, srv.URL, WithLogger(logger))
	s.Start()

	first, ok := s.Receive(true, 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeHello, first.Type())

	second, ok := s.Receive(true, 5*time.Second)
	require.True(t, ok)
	require.Equal(t, protocol.TypePing, second.Type())
	assert.Equal(t, int64(42), second.(protocol.Ping).Time.UnixMilli())

	_, ok = s.Receive(false, 0)
	assert.False(t, ok)
	assert.True(t, logs.Contains("discarding undecodable frame"))
	assert.True(t, logs.Contains(`"level":"WARN"`))
}

func TestInboundFallbackKeepsUnknownFrames(t *testing.T) {
	relay := &fakeRelay{t: t, holdOpen: true}
	relay.inbound = func(n int32) [][]byte {
		if n > 1 {
			return nil
		}
		raw, _ := protocol.Frame{Type: "ZZZZ", Flags: "  ", ClientID: "01", Body: []byte("?")}.MarshalBinary()
		return [][]byte{raw}
	}
	srv := startRelay(t, relay)

	reg := protocol.NewSystemRegistry()
	reg.SetFallback(protocol.DecodeRaw)
	s := newStream(t, srv.URL, WithRegistry(reg))
	s.Start()

	msg, ok := s.Receive(true, 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "ZZZZ", msg.Type())
}

func TestInboundReconnectsAfterRelayCloses(t *testing.T) {
	relay := &fakeRelay{t: t}
	relay.inbound = func(n int32) [][]byte {
		return [][]byte{encode(t, protocol.NewHeartbeat(protocol.To("01"), int(n)))}
	}
	srv := startRelay(t, relay)
	s := newStream(t, srv.URL)
	s.Start()

	for want := uint16(1); want <= 3; want++ {
		msg, ok := s.Receive(true, 5*time.Second)
		require.True(t, ok)
		assert.Equal(t, want, msg.(protocol.Heartbeat).Sequence)
	}
	assert.GreaterOrEqual(t, relay.gets.Load(), int32(3))
}

func TestMessagesQueuedWhileRelayRejects(t *testing.T) {
	relay := &fakeRelay{t: t, status: http.StatusServiceUnavailable}
	srv := startRelay(t, relay)
	s := newStream(t, srv.URL)
	s.Start()

	s.Send(protocol.Hello{Envelope: protocol.To("02")})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, relay.frames())

	relay.mu.Lock()
	relay.status = 0
	relay.holdOpen = true
	relay.mu.Unlock()

	require.Eventually(t, func() bool { return len(relay.frames()) == 1 }, 5*time.Second, 10*time.Millisecond)
}

// resetOnceTransport consumes the first frame of the first POST and then fails it
type resetOnceTransport struct {
	reset atomic.Bool
}

func (rt *resetOnceTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Method == http.MethodPost && rt.reset.CompareAndSwap(false, true) {
		_, _ = protocol.ReadFrame(r.Body)
		_ = r.Body.Close()
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(r)
}

func TestMessagesResentAfterFailedRequest(t *testing.T) {
	relay := &fakeRelay{t: t, holdOpen: true}
	srv := startRelay(t, relay)
	rt := &resetOnceTransport{}
	s := newStream(t, srv.URL, WithHTTPClient(&http.Client{Transport: rt}))

	s.Send(protocol.Hello{Envelope: protocol.To("02")})
	s.Start()

	require.Eventually(t, func() bool { return len(relay.frames()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, rt.reset.Load())
	assert.Equal(t, protocol.TypeHello, relay.frames()[0].Type)
}

func TestStopOnUnauthorized(t *testing.T) {
	relay := &fakeRelay{t: t, status: http.StatusUnauthorized}
	srv := startRelay(t, relay)
	s := newStream(t, srv.URL, WithStopOnUnauthorized(true))
	s.Start()

	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return len(relay.auth) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	// both loops give up after a single rejection each
	time.Sleep(100 * time.Millisecond)
	relay.mu.Lock()
	attempts := len(relay.auth)
	relay.mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestStartIsIdempotentAndStopAbortsConnections(t *testing.T) {
	relay := &fakeRelay{t: t, holdOpen: true}
	srv := startRelay(t, relay)
	s := newStream(t, srv.URL)

	s.Start()
	s.Start()
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return relay.gets.Load() == 1 && relay.posts.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), relay.gets.Load())
	assert.Equal(t, int32(1), relay.posts.Load())

	start := time.Now()
	assert.True(t, s.Stop(2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, s.Running())

	// stopping twice is harmless
	assert.True(t, s.Stop(time.Second))
}

func TestReceiveTimesOut(t *testing.T) {
	s := New("http://127.0.0.1:0/game/x", "tok", WithLogger(testutil.NopLogger()))
	start := time.Now()
	_, ok := s.Receive(true, 30*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
