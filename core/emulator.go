package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/foldscreen/internal/debounce"
	"pkt.systems/foldscreen/internal/eventloop"
	"pkt.systems/foldscreen/internal/logx"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// Emulator is the foldable display of one browsing context: its geometry
// state, viewport, notification hub and update bridge, all driven by a
// single event loop.
type Emulator struct {
	id        schema.ContextID
	cfg       schema.EmulatorConfig
	log       pslog.Logger
	metrics   Metrics
	loop      *eventloop.Loop
	state     *GeometryState
	coalescer *Coalescer
	hub       *Hub
	bridge    *Bridge
	resize    *debounce.Debouncer

	mu       sync.Mutex
	viewport schema.Viewport
	closed   bool
}

// NewEmulator builds the emulator of context id on top of kv.
func NewEmulator(ctx context.Context, id schema.ContextID, cfg schema.EmulatorConfig, kv KV, metrics Metrics) (*Emulator, error) {
	if err := schema.ValidateContextID(id); err != nil {
		return nil, err
	}
	if kv == nil {
		return nil, errors.New("store is required")
	}
	normalized, err := schema.NormalizeEmulatorConfig(cfg)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := logx.WithContextID(ctx, id)
	ctx = logx.ContextWithContextIDLogger(ctx, log, id)

	e := &Emulator{
		id:       id,
		cfg:      normalized,
		log:      log,
		metrics:  metrics,
		loop:     eventloop.New(ctx),
		hub:      NewHub(log),
		viewport: normalized.DefaultViewport,
	}
	e.coalescer = NewCoalescer(id, e.loop, e.dispatchChange, metrics, log)
	e.state = NewGeometryState(kv, normalized.Namespace, e.coalescer.Invalidate)
	e.bridge = newBridge(e)
	e.resize = debounce.New(normalized.ResizeQuietWindow, e.coalescer.Invalidate)
	log.Debug("emulator created", "spanning", e.state.SpanningMode(), "width", e.viewport.Width, "height", e.viewport.Height)
	return e, nil
}

// ID returns the browsing context id.
func (e *Emulator) ID() schema.ContextID { return e.id }

// State returns the geometry state. Writes made outside Batch are still
// coalesced but may be split across loop turns.
func (e *Emulator) State() *GeometryState { return e.state }

// Hub returns the notification hub.
func (e *Emulator) Hub() *Hub { return e.hub }

// Bridge returns the cross-context update bridge.
func (e *Emulator) Bridge() *Bridge { return e.bridge }

// Snapshot returns the current geometry fields.
func (e *Emulator) Snapshot() schema.State { return e.state.Snapshot() }

// Viewport returns the last reported viewport.
func (e *Emulator) Viewport() schema.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// Segments returns every segment, fold included, for the current viewport.
func (e *Emulator) Segments() []schema.Segment {
	return Segments(e.Viewport(), e.state.Snapshot())
}

// WindowSegments returns the screens only: one or two segments.
func (e *Emulator) WindowSegments() []schema.Segment {
	return WindowSegments(e.Segments())
}

// Batch runs fn on the event loop. Every write fn makes is visible before the
// single change notification it causes. Called with the context of an event
// or loop task, fn runs inline in the current turn. If ctx ends before fn is
// scheduled, fn does not run and ctx.Err() is returned.
func (e *Emulator) Batch(ctx context.Context, fn func(*GeometryState) error) error {
	var fnErr error
	err := e.loop.Call(ctx, func(context.Context) {
		fnErr = fn(e.state)
	})
	if errors.Is(err, eventloop.ErrClosed) {
		return fmt.Errorf("%w: %s", schema.ErrContextClosed, e.id)
	}
	if err != nil {
		return err
	}
	return fnErr
}

// Resize records a new viewport. Readers see it immediately; the change
// notification fires once resizing has been quiet for the configured window.
func (e *Emulator) Resize(viewport schema.Viewport) error {
	if viewport.Width < 0 || viewport.Height < 0 {
		return fmt.Errorf("%w: viewport %gx%g is negative", schema.ErrInvalidArgument, viewport.Width, viewport.Height)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", schema.ErrContextClosed, e.id)
	}
	e.viewport = viewport
	e.mu.Unlock()
	e.metrics.Resized(e.id)
	e.log.Trace("viewport resized", "width", viewport.Width, "height", viewport.Height)
	e.resize.Trigger()
	return nil
}

// Invalidate requests a change notification without touching the state.
func (e *Emulator) Invalidate() {
	e.coalescer.Invalidate()
}

// ResizeQuietWindow returns the resize debounce window.
func (e *Emulator) ResizeQuietWindow() time.Duration {
	return e.resize.Wait()
}

// ChangeEvent builds the remote payload for a notification, pulling the
// current geometry.
func (e *Emulator) ChangeEvent(note Notification) schema.ChangeEvent {
	viewport := e.Viewport()
	segments := Segments(viewport, e.state.Snapshot())
	return schema.ChangeEvent{
		Seq:            note.Seq,
		Type:           note.Type,
		ContextID:      e.id,
		State:          e.state.Snapshot(),
		Viewport:       viewport,
		Segments:       segments,
		WindowSegments: WindowSegments(segments),
		Timestamp:      note.Time,
	}
}

// Done is closed once the emulator has shut down.
func (e *Emulator) Done() <-chan struct{} {
	return e.loop.Done()
}

// Close stops pending resize work and the event loop. Notifications already
// queued are still delivered.
func (e *Emulator) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.resize.Stop()
	pending := e.coalescer.Pending()
	e.loop.Close()
	e.log.Debug("emulator closed", "flushed_pending", pending)
}

func (e *Emulator) dispatchChange(ctx context.Context) {
	e.hub.DispatchEvent(NewEvent(ctx, schema.EventChange))
	e.metrics.Dispatched(e.id)
}
