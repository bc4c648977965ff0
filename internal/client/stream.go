package client

import (
	"errors"
	"time"

	"github.com/mcoot/gamerelay/internal/protocol"
	"github.com/mcoot/gamerelay/internal/transport"
)

// ErrStreamNotStarted is returned when sending without a running stream
var ErrStreamNotStarted = errors.New("stream not started")

// StartStream opens the relay stream of the current game. It does nothing if
// the stream is already running.
func (c *Client) StartStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoGame
	}
	if c.session.URL == "" {
		return errors.New("game has no relay url")
	}
	if c.stream != nil && c.stream.Running() {
		return nil
	}

	token := c.session.Player.Token
	if token == "" {
		token = c.token
	}
	opts := append([]transport.Option{
		transport.WithRegistry(c.registry),
		transport.WithLogger(c.logger),
	}, c.streamOpts...)
	c.stream = transport.New(c.session.URL, token, opts...)
	c.stream.Start()
	return nil
}

// StopStream stops the stream, waiting up to wait for it to wind down
func (c *Client) StopStream(wait time.Duration) bool {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	if stream == nil {
		return true
	}
	return stream.Stop(wait)
}

// Send queues a message for the relay
func (c *Client) Send(m protocol.Message) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	if stream == nil || !stream.Running() {
		return ErrStreamNotStarted
	}
	stream.Send(m)
	return nil
}

// Receive returns the next message from the relay; see transport.Stream.Receive
func (c *Client) Receive(block bool, timeout time.Duration) (protocol.Message, bool) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	if stream == nil {
		return nil, false
	}
	return stream.Receive(block, timeout)
}
