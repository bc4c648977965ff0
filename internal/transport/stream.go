// Package transport keeps a full duplex message channel to a relay open over two
// chunked HTTP requests: a long lived POST carrying outbound frames and a long
// lived GET carrying inbound frames. Each direction reconnects on its own.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/gamerelay/internal/protocol"
	"github.com/mcoot/gamerelay/internal/queue"
)

// ErrUnauthorized is reported to the logs when the relay rejects the stream token
var ErrUnauthorized = errors.New("stream token rejected")

var errStreamClosed = errors.New("stream closed")

// Stream is a reconnecting duplex message channel
type Stream struct {
	url      string
	token    string
	client   *http.Client
	registry *protocol.Registry
	logger   *slog.Logger

	stopOnUnauthorized bool
	minBackoff         time.Duration
	maxBackoff         time.Duration

	sendQ *queue.Queue[protocol.Message]
	recvQ *queue.Queue[protocol.Message]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Stream
type Option func(*Stream)

// WithHTTPClient overrides the client used for both requests. It must not set a Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Stream) { s.client = c }
}

// WithRegistry sets the registry used to decode inbound frames
func WithRegistry(r *protocol.Registry) Option {
	return func(s *Stream) { s.registry = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// WithStopOnUnauthorized ends a direction's loop when the relay answers 401
func WithStopOnUnauthorized(stop bool) Option {
	return func(s *Stream) { s.stopOnUnauthorized = stop }
}

// WithBackoff bounds the delay between consecutive failed connection attempts
func WithBackoff(min, max time.Duration) Option {
	return func(s *Stream) {
		s.minBackoff = min
		s.maxBackoff = max
	}
}

// New creates a stopped stream for the game url, authenticating with token
func New(url, token string, opts ...Option) *Stream {
	s := &Stream{
		url:        url,
		token:      token,
		client:     &http.Client{},
		registry:   protocol.NewSystemRegistry(),
		logger:     slog.Default(),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
		sendQ:      queue.New[protocol.Message](),
		recvQ:      queue.New[protocol.Message](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "stream"), slog.String("url", url))
	return s
}

// Start launches both direction loops. Calling Start on a running stream does nothing.
func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.superviseLoop(ctx, "outbound", s.runOutbound)
	}()
	go func() {
		defer wg.Done()
		s.superviseLoop(ctx, "inbound", s.runInbound)
	}()

	done := s.done
	go func() {
		wg.Wait()
		close(done)
	}()
}

// Stop cancels both loops, aborting in-flight requests, and waits up to wait for
// them to exit. It reports whether both loops finished in time.
func (s *Stream) Stop(wait time.Duration) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return true
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	if wait <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Running reports whether Start has been called without a matching Stop
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Send queues m for the outbound connection. It never blocks.
func (s *Stream) Send(m protocol.Message) {
	s.sendQ.Push(m)
}

// Receive returns the next inbound message. With block set it waits up to
// timeout, or indefinitely while the stream runs when timeout is not positive.
func (s *Stream) Receive(block bool, timeout time.Duration) (protocol.Message, bool) {
	if !block {
		return s.recvQ.TryPop()
	}
	if timeout > 0 {
		return s.recvQ.PopTimeout(timeout)
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return s.recvQ.Pop(ctx)
}

// Pending returns the number of messages waiting to be sent
func (s *Stream) Pending() int {
	return s.sendQ.Len()
}

// superviseLoop reopens a direction until ctx ends. After a connection that was
// established the next attempt is immediate; consecutive failures back off.
func (s *Stream) superviseLoop(ctx context.Context, direction string, run func(context.Context) (bool, error)) {
	logger := s.logger.With(slog.String("direction", direction))
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.minBackoff
	bo.MaxInterval = s.maxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	for ctx.Err() == nil {
		connected, err := run(ctx)
		if ctx.Err() != nil {
			break
		}

		if errors.Is(err, ErrUnauthorized) {
			logger.Warn("relay rejected stream token", slog.String("error", err.Error()))
			if s.stopOnUnauthorized {
				return
			}
		} else if err != nil {
			logger.Warn("stream connection failed", slog.String("error", err.Error()))
		} else {
			logger.Info("stream connection closed by relay")
		}

		delay := time.Duration(0)
		if connected {
			bo.Reset()
		} else {
			delay = bo.NextBackOff()
		}
		if !sleep(ctx, delay) {
			break
		}
	}
	logger.Debug("stream loop stopped")
}

// runOutbound holds one POST open, writing a frame per queued message.
// Messages written on a connection that failed or was rejected are queued again.
func (s *Stream) runOutbound(ctx context.Context) (bool, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, pr)
	if err != nil {
		return false, fmt.Errorf("build outbound request: %w", err)
	}
	req.ContentLength = -1
	req.Header.Set("Authorization", "Token "+s.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	pumpDone := make(chan []protocol.Message, 1)
	go func() {
		pumpDone <- s.pump(reqCtx, pw)
	}()
	finish := func() []protocol.Message {
		cancel()
		_ = pr.CloseWithError(errStreamClosed)
		return <-pumpDone
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.requeue(finish())
		return false, fmt.Errorf("outbound request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		s.requeue(finish())
		return false, err
	}

	// a relay may accept before the body ends; keep streaming until it hangs up
	_, _ = io.Copy(io.Discard, resp.Body)
	finish()
	return true, nil
}

// pump moves messages from the send queue into the request body and returns
// the messages it wrote. A message whose write fails goes back to the head of the queue.
func (s *Stream) pump(ctx context.Context, pw *io.PipeWriter) []protocol.Message {
	var sent []protocol.Message
	defer func() { _ = pw.Close() }()

	for {
		msg, ok := s.sendQ.Pop(ctx)
		if !ok {
			return sent
		}

		data, err := protocol.Encode(msg)
		if err != nil {
			s.logger.Warn("dropping unencodable message",
				slog.String("type", msg.Type()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if _, err := pw.Write(data); err != nil {
			s.sendQ.PushFront(msg)
			return sent
		}
		sent = append(sent, msg)
	}
}

func (s *Stream) requeue(msgs []protocol.Message) {
	for i := len(msgs) - 1; i >= 0; i-- {
		s.sendQ.PushFront(msgs[i])
	}
}

// runInbound holds one GET open, decoding frames into the receive queue
func (s *Stream) runInbound(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("build inbound request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+s.token)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("inbound request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return false, err
	}

	for {
		f, err := protocol.ReadFrame(resp.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			return true, fmt.Errorf("read frame: %w", err)
		}

		msg, err := s.registry.Decode(f)
		if err != nil {
			s.logger.Warn("discarding undecodable frame",
				slog.String("type", f.Type),
				slog.String("client_id", f.ClientID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.recvQ.Push(msg)
	}
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		return fmt.Errorf("relay responded %s", resp.Status)
	default:
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
