package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"pkt.systems/foldscreen/internal/sessionstore"
	"pkt.systems/foldscreen/schema"
)

func newTestEmulator(t *testing.T, cfg schema.EmulatorConfig) *Emulator {
	t.Helper()
	emu, err := NewEmulator(context.Background(), "test", cfg, sessionstore.NewMemory(), nil)
	if err != nil {
		t.Fatalf("new emulator: %v", err)
	}
	t.Cleanup(emu.Close)
	return emu
}

// flush waits until every task queued on the emulator loop so far has run.
func flush(t *testing.T, emu *Emulator) {
	t.Helper()
	if err := emu.Batch(context.Background(), func(*GeometryState) error { return nil }); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

type changeRecorder struct {
	mu     sync.Mutex
	count  int
	states []schema.State
	times  []time.Time
	ch     chan struct{}
}

func recordChanges(t *testing.T, emu *Emulator) *changeRecorder {
	t.Helper()
	rec := &changeRecorder{ch: make(chan struct{}, 64)}
	cancel := emu.Hub().Subscribe(func(*Event) {
		rec.mu.Lock()
		rec.count++
		rec.states = append(rec.states, emu.Snapshot())
		rec.times = append(rec.times, time.Now())
		rec.mu.Unlock()
		rec.ch <- struct{}{}
	})
	t.Cleanup(cancel)
	return rec
}

func (r *changeRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *changeRecorder) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for change notification")
	}
}
