package core

import (
	"context"
	"sync/atomic"

	"pkt.systems/foldscreen/internal/eventloop"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// Coalescer collapses invalidations into at most one dispatch per event loop
// turn. The first Invalidate marks the coalescer pending and queues a
// dispatch behind the running task; further calls are no-ops until that
// dispatch starts.
type Coalescer struct {
	id       schema.ContextID
	loop     *eventloop.Loop
	dispatch func(ctx context.Context)
	metrics  Metrics
	log      pslog.Logger
	pending  atomic.Bool
}

// NewCoalescer binds a coalescer to loop. dispatch runs on the loop.
func NewCoalescer(id schema.ContextID, loop *eventloop.Loop, dispatch func(ctx context.Context), metrics Metrics, logger pslog.Logger) *Coalescer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Coalescer{
		id:       id,
		loop:     loop,
		dispatch: dispatch,
		metrics:  metrics,
		log:      logger,
	}
}

// Pending reports whether a dispatch is queued but has not started.
func (c *Coalescer) Pending() bool {
	return c.pending.Load()
}

// Invalidate requests a change notification. Safe from any goroutine.
func (c *Coalescer) Invalidate() {
	if !c.pending.CompareAndSwap(false, true) {
		c.metrics.Invalidated(c.id, true)
		c.log.Trace("invalidate coalesced")
		return
	}
	c.metrics.Invalidated(c.id, false)
	err := c.loop.Post(func(ctx context.Context) {
		c.pending.Store(false)
		if c.dispatch != nil {
			c.dispatch(ctx)
		}
	})
	if err != nil {
		c.pending.Store(false)
		c.log.Debug("invalidate dropped", "err", err)
		return
	}
	c.log.Trace("invalidate scheduled")
}
