package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"pkt.systems/foldscreen/schema"
)

// Bridge applies update messages posted by a controlling context. Fields are
// allow-listed and validated by the same rules as the setters.
type Bridge struct {
	emu      *Emulator
	attached atomic.Bool
}

func newBridge(emu *Emulator) *Bridge {
	return &Bridge{emu: emu}
}

// Handle applies one message in a single loop turn, so a message produces at
// most one change notification. Invalid messages change nothing.
func (b *Bridge) Handle(ctx context.Context, msg schema.UpdateMessage) error {
	err := b.handle(ctx, msg)
	b.emu.metrics.BridgeMessage(b.emu.id, err)
	if err != nil {
		b.emu.log.Warn("bridge message rejected", "action", msg.Action, "err", err)
		return err
	}
	b.emu.log.Debug("bridge message applied", "action", msg.Action)
	return nil
}

func (b *Bridge) handle(ctx context.Context, msg schema.UpdateMessage) error {
	if msg.Action != schema.ActionUpdate {
		return fmt.Errorf("%w: %q", schema.ErrUnknownAction, msg.Action)
	}
	if msg.Value.Empty() {
		return nil
	}
	return b.emu.Batch(ctx, func(state *GeometryState) error {
		return state.Apply(msg.Value)
	})
}

// Attach consumes messages until the channel closes or ctx is done. Only one
// source may be attached per context; the call returns immediately after
// starting the consumer.
func (b *Bridge) Attach(ctx context.Context, messages <-chan schema.UpdateMessage) error {
	if !b.attached.CompareAndSwap(false, true) {
		return schema.ErrBridgeAttached
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b.emu.log.Debug("bridge attached")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.emu.loop.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				_ = b.Handle(ctx, msg)
			}
		}
	}()
	return nil
}

// Attached reports whether a message source has been attached.
func (b *Bridge) Attached() bool {
	return b.attached.Load()
}
