package core

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// Registry owns the single emulator of every browsing context in the process.
// Emulators are created lazily on first Get and live until closed.
type Registry struct {
	ctx     context.Context
	cfg     schema.EmulatorConfig
	open    OpenStoreFunc
	metrics Metrics
	log     pslog.Logger

	mu        sync.Mutex
	emulators map[schema.ContextID]*Emulator
	closed    bool
}

// NewRegistry constructs a registry. Emulators inherit ctx's values (logger)
// but not its cancellation.
func NewRegistry(ctx context.Context, cfg schema.EmulatorConfig, deps RegistryDeps) (*Registry, error) {
	if deps.OpenStore == nil {
		return nil, errors.New("store opener is required")
	}
	normalized, err := schema.NormalizeEmulatorConfig(cfg)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Registry{
		ctx:       pslog.ContextWithLogger(ctx, logger),
		cfg:       normalized,
		open:      deps.OpenStore,
		metrics:   metrics,
		log:       logger,
		emulators: make(map[schema.ContextID]*Emulator),
	}, nil
}

// Config returns the normalized emulator config.
func (r *Registry) Config() schema.EmulatorConfig {
	return r.cfg
}

// NewContextID returns a fresh random context id.
func (r *Registry) NewContextID() schema.ContextID {
	return schema.ContextID(uuid.NewString())
}

// Get returns the emulator of id, creating it on first use. Concurrent and
// repeated calls for the same id return the same instance.
func (r *Registry) Get(id schema.ContextID) (*Emulator, error) {
	if err := schema.ValidateContextID(id); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, schema.ErrContextClosed
	}
	if emu := r.emulators[id]; emu != nil {
		return emu, nil
	}
	kv, err := r.open(id)
	if err != nil {
		return nil, err
	}
	emu, err := NewEmulator(r.ctx, id, r.cfg, kv, r.metrics)
	if err != nil {
		return nil, err
	}
	r.emulators[id] = emu
	r.metrics.ContextsLive(len(r.emulators))
	r.log.Info("browsing context opened", "context", id, "contexts", len(r.emulators))
	return emu, nil
}

// Lookup returns the emulator of id if it is live.
func (r *Registry) Lookup(id schema.ContextID) (*Emulator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	emu, ok := r.emulators[id]
	return emu, ok
}

// IDs lists live contexts in sorted order.
func (r *Registry) IDs() []schema.ContextID {
	r.mu.Lock()
	ids := make([]schema.ContextID, 0, len(r.emulators))
	for id := range r.emulators {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Invalidate requests a change notification on id if it is live. It reports
// whether the context was live.
func (r *Registry) Invalidate(id schema.ContextID) bool {
	emu, ok := r.Lookup(id)
	if !ok {
		return false
	}
	emu.Invalidate()
	return true
}

// Close shuts down the emulator of id.
func (r *Registry) Close(id schema.ContextID) error {
	r.mu.Lock()
	emu, ok := r.emulators[id]
	if ok {
		delete(r.emulators, id)
	}
	live := len(r.emulators)
	r.mu.Unlock()
	if !ok {
		return schema.ErrContextNotFound
	}
	emu.Close()
	r.metrics.ContextsLive(live)
	r.log.Info("browsing context closed", "context", id, "contexts", live)
	return nil
}

// CloseAll shuts down every emulator and rejects further Gets.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	emulators := r.emulators
	r.emulators = make(map[schema.ContextID]*Emulator)
	r.closed = true
	r.mu.Unlock()
	for _, emu := range emulators {
		emu.Close()
	}
	r.metrics.ContextsLive(0)
}
