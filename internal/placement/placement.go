// Package placement decides which relay server hosts a new game.
package placement

import (
	"context"
	"errors"
	"sync"

	"github.com/mcoot/gamerelay/internal/model"
)

// ErrNoServers is returned when a pool has nothing to place games on
var ErrNoServers = errors.New("no relay servers configured")

// Provisioner supplies a server for a game
type Provisioner interface {
	Provision(ctx context.Context, game *model.Game) (model.Server, error)
}

// Pool hands out a fixed set of servers in rotation
type Pool struct {
	mu      sync.Mutex
	servers []model.Server
	next    int
}

// NewPool creates a provisioner over servers
func NewPool(servers ...model.Server) *Pool {
	return &Pool{servers: append([]model.Server(nil), servers...)}
}

// Provision returns the next server in rotation
func (p *Pool) Provision(ctx context.Context, game *model.Game) (model.Server, error) {
	if err := ctx.Err(); err != nil {
		return model.Server{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.servers) == 0 {
		return model.Server{}, ErrNoServers
	}
	srv := p.servers[p.next%len(p.servers)]
	p.next++
	return srv, nil
}
