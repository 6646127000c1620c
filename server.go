package foldscreen

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/httpapi"
	"pkt.systems/foldscreen/internal/metrics"
	"pkt.systems/foldscreen/internal/sessionstore"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// Server composes the emulator registry, the HTTP server and the state
// directory watcher.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Registry() *core.Registry
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	StateDir       string
	Emulator       schema.EmulatorConfig
	HTTP           httpapi.Config
	DefaultContext schema.ContextID
	Metrics        bool
}

// ServerDeps captures optional dependencies of the server.
type ServerDeps struct {
	Logger pslog.Logger
	// Observer receives emulator activity alongside the built-in metrics.
	Observer core.Metrics
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP  bool
	enableWatch bool
}

// WithHTTP enables the HTTP API and page shim.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithStateWatch invalidates live contexts when their state file is changed
// by another process.
func WithStateWatch() ServerOption {
	return func(o *serverOptions) { o.enableWatch = true }
}

// New constructs a composable foldscreen server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableWatch {
		return nil, errors.New("no services enabled")
	}
	normalized, err := schema.NormalizeEmulatorConfig(cfg.Emulator)
	if err != nil {
		return nil, err
	}
	cfg.Emulator = normalized
	if cfg.DefaultContext != "" {
		if err := schema.ValidateContextID(cfg.DefaultContext); err != nil {
			return nil, err
		}
	}
	if cfg.HTTP.WatchDepth <= 0 {
		cfg.HTTP.WatchDepth = normalized.WatchDepth
	}

	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	store, err := sessionstore.NewFileStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return nil, err
	}

	var prom *metrics.Metrics
	sinks := make([]core.Metrics, 0, 2)
	if cfg.Metrics {
		prom = metrics.New(true)
		sinks = append(sinks, prom)
	}
	if deps.Observer != nil {
		sinks = append(sinks, deps.Observer)
	}
	var observer core.Metrics
	switch len(sinks) {
	case 0:
	case 1:
		observer = sinks[0]
	default:
		observer = metricsFanout{sinks: sinks}
	}

	registry, err := core.NewRegistry(context.Background(), cfg.Emulator, core.RegistryDeps{
		OpenStore: func(id schema.ContextID) (core.KV, error) {
			return store.Bucket(id)
		},
		Metrics: observer,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		hub := httpapi.NewHub(cfg.HTTP.StreamHistory)
		var metricsHandler http.Handler
		if prom != nil {
			metricsHandler = prom.Handler()
		}
		httpSrv = httpapi.NewServer(cfg.HTTP, registry, hub, metricsHandler)
	}

	return &compositeServer{
		cfg:      cfg,
		options:  options,
		store:    store,
		registry: registry,
		httpSrv:  httpSrv,
	}, nil
}

type compositeServer struct {
	cfg      ServerConfig
	options  serverOptions
	store    *sessionstore.FileStore
	registry *core.Registry
	httpSrv  *httpapi.Server
	logger   pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Registry() *core.Registry {
	return s.registry
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"state_watch", s.options.enableWatch,
		"state_dir", s.store.Dir(),
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
	)
	if s.cfg.DefaultContext != "" {
		if s.httpSrv != nil {
			_, err := s.httpSrv.Open(s.cfg.DefaultContext)
			if err != nil {
				return err
			}
		} else if _, err := s.registry.Get(s.cfg.DefaultContext); err != nil {
			return err
		}
	}
	if s.options.enableWatch {
		go func() {
			err := s.store.Watch(s.ctx, func(id schema.ContextID) {
				if s.registry.Invalidate(id) {
					log.Debug("state change invalidated context", "context", id)
				}
			})
			if err != nil {
				log.Error("state watcher failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.options.enableHTTP && s.httpSrv != nil {
		s.httpSrv.SetBaseContext(s.ctx)
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	s.registry.CloseAll()
	log.Info("server contexts closed")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
