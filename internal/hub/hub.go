// Package hub runs the hub's listeners, the optional local relay and the
// journal expunge ticker.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mcoot/gamerelay/internal/api"
	"github.com/mcoot/gamerelay/internal/config"
	"github.com/mcoot/gamerelay/internal/factory"
	"github.com/mcoot/gamerelay/internal/middleware"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/relay"
	redisstorage "github.com/mcoot/gamerelay/internal/storage/redis"
	"github.com/mcoot/gamerelay/internal/services/tokens"
	"github.com/mcoot/gamerelay/internal/services/users"
)

// rate limiter entries idle this long are forgotten
const rateLimitTTL = 10 * time.Minute

// Hub owns every listener of one hub process
type Hub struct {
	App   *factory.App
	Relay *relay.Relay

	external *api.Server
	internal *api.Server
	relays   []*api.Server

	limiter         *middleware.RateLimiter
	expungeInterval time.Duration
	logger          *slog.Logger
}

// New binds every listener and wires the application. With a local relay the
// broker ports are served in-process and games are placed there.
func New(cfg *config.Config, logger *slog.Logger) (*Hub, error) {
	h := &Hub{
		expungeInterval: cfg.ExpungeInterval,
		logger:          logger.With(slog.String("component", "hub")),
	}

	server := model.Server{
		Host:         cfg.Broker.Host,
		ServerPort:   cfg.Broker.ServerPort,
		InternalPort: cfg.Broker.InternalPort,
	}
	if cfg.Relay.Local {
		if err := h.startLocalRelay(&server, logger); err != nil {
			return nil, err
		}
	}

	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		TokenConfig: tokens.Config{
			Path:                cfg.Tokens.File,
			ExpungeTriggerRatio: cfg.Tokens.ExpungeTriggerRatio,
		},
		UserConfig: users.Config{
			Path:                cfg.Users.File,
			ExpungeTriggerRatio: cfg.Users.ExpungeTriggerRatio,
			BcryptCost:          cfg.Users.BcryptCost,
		},
		Servers: []model.Server{server},
	}
	if cfg.Storage.Type == config.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		if cfg.Storage.GameTTL > 0 {
			redisCfg.GameTTL = cfg.Storage.GameTTL
		}
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		h.closeListeners()
		return nil, err
	}
	h.App = app

	if cfg.RateLimit.RPS > 0 {
		h.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, rateLimitTTL)
	}

	routerCfg := api.RouterConfig{
		Logger:         logger,
		TokenManager:   app.TokenManager,
		UserManager:    app.UserManager,
		GameController: app.GameController,
		Metrics:        app.Metrics,
		RateLimiter:    h.limiter,
		LoginLifespan:  cfg.LoginLifespan,
	}

	h.external = api.NewServer(api.NewExternalRouter(routerCfg), serverConfig(cfg.External), logger)
	h.internal = api.NewServer(api.NewInternalRouter(routerCfg), serverConfig(cfg.Internal), logger)
	for _, s := range []*api.Server{h.external, h.internal} {
		if err := s.Listen(); err != nil {
			h.closeListeners()
			_ = app.Close()
			return nil, err
		}
	}

	return h, nil
}

func (h *Hub) startLocalRelay(server *model.Server, logger *slog.Logger) error {
	h.Relay = relay.New(logger)

	streams := api.NewServer(h.Relay.StreamHandler(), serverConfig(config.Listener{Host: server.Host, Port: server.ServerPort}), logger)
	control := api.NewServer(h.Relay.ControlHandler(), serverConfig(config.Listener{Host: server.Host, Port: server.InternalPort}), logger)
	for _, s := range []*api.Server{streams, control} {
		if err := s.Listen(); err != nil {
			h.closeListeners()
			return err
		}
		h.relays = append(h.relays, s)
	}

	// ports may have been chosen by the OS
	var err error
	if server.ServerPort, err = port(streams.Addr()); err != nil {
		return err
	}
	if server.InternalPort, err = port(control.Addr()); err != nil {
		return err
	}
	return nil
}

func serverConfig(l config.Listener) api.ServerConfig {
	sc := api.DefaultServerConfig()
	sc.Host = l.Host
	sc.Port = l.Port
	return sc
}

func port(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse address %s: %w", addr, err)
	}
	return strconv.Atoi(p)
}

// ExternalAddr is the bound address of the external listener
func (h *Hub) ExternalAddr() string {
	return h.external.Addr()
}

// InternalAddr is the bound address of the internal listener
func (h *Hub) InternalAddr() string {
	return h.internal.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts everything down
func (h *Hub) Run(ctx context.Context) error {
	servers := append([]*api.Server{h.external, h.internal}, h.relays...)

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *api.Server) {
			errCh <- s.Serve()
		}(s)
	}

	h.logger.Info("hub started",
		slog.String("external", h.ExternalAddr()),
		slog.String("internal", h.InternalAddr()),
		slog.Bool("local_relay", h.Relay != nil))

	expungeCtx, stopExpunge := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.expungeLoop(expungeCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stopExpunge()
	wg.Wait()

	shutdownErr := h.shutdown(servers)
	return errors.Join(runErr, shutdownErr)
}

func (h *Hub) expungeLoop(ctx context.Context) {
	ticker := time.NewTicker(h.expungeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.App.Expunge(); err != nil {
				h.logger.Error("journal expunge failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (h *Hub) shutdown(servers []*api.Server) error {
	var errs []error
	for _, s := range servers {
		if err := s.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if h.limiter != nil {
		h.limiter.Stop()
	}
	if err := h.App.Close(); err != nil {
		errs = append(errs, err)
	}
	h.logger.Info("hub stopped")
	return errors.Join(errs...)
}

func (h *Hub) closeListeners() {
	for _, s := range append([]*api.Server{h.external, h.internal}, h.relays...) {
		if s != nil {
			_ = s.Close()
		}
	}
}
