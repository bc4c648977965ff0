package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/gamerelay/internal/protocol"
	"github.com/mcoot/gamerelay/internal/queue"
)

// Client is a registered game participant. Frames for it wait in inbox until
// its inbound stream drains them.
type Client struct {
	token string
	id    string
	alias string
	inbox *queue.Queue[protocol.Frame]

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(token, id, alias string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		token:  token,
		id:     id,
		alias:  alias,
		inbox:  queue.New[protocol.Frame](),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the client id
func (c *Client) ID() string {
	return c.id
}

// Pending returns the number of frames waiting for delivery
func (c *Client) Pending() int {
	return c.inbox.Len()
}

func (c *Client) close() {
	c.cancel()
}

// serveInbound streams queued frames to the client until it disconnects or is removed
func serveInbound(w http.ResponseWriter, r *http.Request, c *Client, logger *slog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	for {
		f, ok := c.inbox.Pop(ctx)
		if !ok {
			return
		}
		data, err := f.MarshalBinary()
		if err != nil {
			logger.Warn("relay frame dropped - cannot encode",
				slog.String("client_id", c.id),
				slog.String("error", err.Error()))
			continue
		}
		if _, err := w.Write(data); err != nil {
			c.inbox.PushFront(f)
			return
		}
		flusher.Flush()
	}
}

// serveOutbound reads frames from the client's upload stream and routes them
func serveOutbound(w http.ResponseWriter, r *http.Request, hub *Hub, c *Client, logger *slog.Logger) {
	count := 0
	for {
		f, err := protocol.ReadFrame(r.Body)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("relay upload ended",
					slog.String("client_id", c.id),
					slog.Int("frames", count),
					slog.String("error", err.Error()))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		count++
		hub.Route(c, f)
	}
}
