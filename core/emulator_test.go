package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/foldscreen/schema"
)

func TestBatchFiresOneChangeAfterAllWrites(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	rec := recordChanges(t, emu)

	err := emu.Batch(context.Background(), func(state *GeometryState) error {
		if err := state.SetSpanningMode("single-fold-vertical"); err != nil {
			return err
		}
		if err := state.SetFoldSize(10); err != nil {
			return err
		}
		if err := state.SetFoldSize(20); err != nil {
			return err
		}
		if err := state.SetBrowserShellSize(30); err != nil {
			return err
		}
		return state.SetSpanningMode("single-fold-horizontal")
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	flush(t, emu)

	if got := rec.Count(); got != 1 {
		t.Fatalf("change notifications = %d, want 1", got)
	}
	want := schema.State{SpanningMode: schema.SpanningSingleFoldHorizontal, FoldSize: 20, BrowserShellSize: 30}
	if rec.states[0] != want {
		t.Fatalf("listener observed %+v, want %+v", rec.states[0], want)
	}
}

func TestSeparateBatchesFireSeparately(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	rec := recordChanges(t, emu)
	for _, size := range []int{4, 8} {
		if err := emu.Batch(context.Background(), func(state *GeometryState) error {
			return state.SetFoldSize(size)
		}); err != nil {
			t.Fatalf("batch: %v", err)
		}
		flush(t, emu)
	}
	if got := rec.Count(); got != 2 {
		t.Fatalf("change notifications = %d, want 2", got)
	}
}

func TestBatchErrorStillNotifiesForEarlierWrites(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	rec := recordChanges(t, emu)
	err := emu.Batch(context.Background(), func(state *GeometryState) error {
		if err := state.SetFoldSize(12); err != nil {
			return err
		}
		return state.SetFoldSize(-1)
	})
	if !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("batch error = %v, want ErrInvalidArgument", err)
	}
	flush(t, emu)
	if got := rec.Count(); got != 1 {
		t.Fatalf("change notifications = %d, want 1", got)
	}
	if got := emu.Snapshot().FoldSize; got != 12 {
		t.Fatalf("fold size = %v, want 12", got)
	}
}

func TestListenerBatchRunsInlineAndSchedulesNextTurn(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	rec := recordChanges(t, emu)
	reentered := false
	cancel := emu.Hub().Subscribe(func(event *Event) {
		if reentered {
			return
		}
		reentered = true
		if err := emu.Batch(event.Context(), func(state *GeometryState) error {
			return state.SetFoldSize(99)
		}); err != nil {
			t.Errorf("nested batch: %v", err)
		}
	})
	defer cancel()

	emu.Invalidate()
	rec.wait(t, time.Second)
	rec.wait(t, time.Second)
	flush(t, emu)
	if got := rec.Count(); got != 2 {
		t.Fatalf("change notifications = %d, want 2", got)
	}
	if got := emu.Snapshot().FoldSize; got != 99 {
		t.Fatalf("fold size = %v, want 99", got)
	}
}

func TestResizeStormDebounced(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	rec := recordChanges(t, emu)
	if emu.ResizeQuietWindow() != 200*time.Millisecond {
		t.Fatalf("quiet window = %v, want 200ms", emu.ResizeQuietWindow())
	}

	var last time.Time
	for i := 0; i < 10; i++ {
		last = time.Now()
		if err := emu.Resize(schema.Viewport{Width: float64(800 + i), Height: 600}); err != nil {
			t.Fatalf("resize: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := emu.Viewport().Width; got != 809 {
		t.Fatalf("viewport width = %v, want 809 before the notification", got)
	}

	rec.wait(t, 2*time.Second)
	rec.mu.Lock()
	fired := rec.times[0]
	rec.mu.Unlock()
	if gap := fired.Sub(last); gap < 200*time.Millisecond {
		t.Fatalf("notification fired %v after last resize, want >= 200ms", gap)
	}

	time.Sleep(300 * time.Millisecond)
	flush(t, emu)
	if got := rec.Count(); got != 1 {
		t.Fatalf("change notifications = %d, want 1", got)
	}
}

func TestResizeRejectsNegativeViewport(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	if err := emu.Resize(schema.Viewport{Width: -1, Height: 10}); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("resize error = %v, want ErrInvalidArgument", err)
	}
	if got := emu.Viewport(); got != (schema.Viewport{Width: 800, Height: 600}) {
		t.Fatalf("viewport = %+v, want default", got)
	}
}

func TestChangeEventCarriesGeometry(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{DefaultViewport: schema.Viewport{Width: 800, Height: 600}})
	if err := emu.Batch(context.Background(), func(state *GeometryState) error {
		if err := state.SetSpanningMode("single-fold-horizontal"); err != nil {
			return err
		}
		return state.SetFoldSize(20)
	}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	event := emu.ChangeEvent(Notification{Seq: 7, Type: schema.EventChange, Time: time.Unix(10, 0)})
	if event.Seq != 7 || event.ContextID != "test" || event.Type != schema.EventChange {
		t.Fatalf("unexpected header %+v", event)
	}
	if len(event.Segments) != 3 || len(event.WindowSegments) != 2 {
		t.Fatalf("segments = %d, window segments = %d", len(event.Segments), len(event.WindowSegments))
	}
	if event.WindowSegments[1].Top != 310 {
		t.Fatalf("bottom screen top = %v, want 310", event.WindowSegments[1].Top)
	}
}

func TestCancelledBatchLeavesStateUntouched(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	rec := recordChanges(t, emu)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := emu.Batch(ctx, func(state *GeometryState) error {
		return state.SetFoldSize(99)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("batch error = %v, want context.Canceled", err)
	}
	flush(t, emu)

	if got := emu.Snapshot().FoldSize; got != 0 {
		t.Fatalf("fold size = %g after cancelled batch", got)
	}
	if got := rec.Count(); got != 0 {
		t.Fatalf("change notifications = %d, want 0", got)
	}
}

func TestClosedEmulatorRejectsWork(t *testing.T) {
	emu := newTestEmulator(t, schema.EmulatorConfig{})
	emu.Close()
	emu.Close()
	if err := emu.Batch(context.Background(), func(*GeometryState) error { return nil }); !errors.Is(err, schema.ErrContextClosed) {
		t.Fatalf("batch error = %v, want ErrContextClosed", err)
	}
	if err := emu.Resize(schema.Viewport{Width: 1, Height: 1}); !errors.Is(err, schema.ErrContextClosed) {
		t.Fatalf("resize error = %v, want ErrContextClosed", err)
	}
	emu.Invalidate()
}

func TestNewEmulatorRejectsBadContext(t *testing.T) {
	if _, err := NewEmulator(context.Background(), "../x", schema.EmulatorConfig{}, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
