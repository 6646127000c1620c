package core

import (
	"errors"
	"testing"

	"pkt.systems/foldscreen/internal/sessionstore"
	"pkt.systems/foldscreen/schema"
)

func newTestState() (*GeometryState, *sessionstore.Memory, *int) {
	kv := sessionstore.NewMemory()
	invalidations := 0
	state := NewGeometryState(kv, "foldscreen", func() { invalidations++ })
	return state, kv, &invalidations
}

func TestGeometryStateDefaults(t *testing.T) {
	state, _, _ := newTestState()
	if got := state.Snapshot(); got != schema.DefaultState() {
		t.Fatalf("snapshot = %+v, want defaults", got)
	}
}

func TestSetSpanningModeRoundTrip(t *testing.T) {
	state, kv, invalidations := newTestState()
	for _, mode := range schema.SpanningModes {
		if err := state.SetSpanningMode(string(mode)); err != nil {
			t.Fatalf("set %q: %v", mode, err)
		}
		if got := state.SpanningMode(); got != mode {
			t.Fatalf("spanning mode = %q, want %q", got, mode)
		}
		if raw, _ := kv.Get("foldscreen-spanning"); raw != string(mode) {
			t.Fatalf("stored mode = %q, want %q", raw, mode)
		}
	}
	if *invalidations != len(schema.SpanningModes) {
		t.Fatalf("invalidations = %d, want %d", *invalidations, len(schema.SpanningModes))
	}
}

func TestSetSpanningModeRejectsUnknownAndKeepsState(t *testing.T) {
	state, _, invalidations := newTestState()
	if err := state.SetSpanningMode(string(schema.SpanningSingleFoldVertical)); err != nil {
		t.Fatalf("set: %v", err)
	}
	for _, bad := range []string{"", "NONE", "dual-screen", "single-fold-horizontal "} {
		if err := state.SetSpanningMode(bad); !errors.Is(err, schema.ErrInvalidArgument) {
			t.Fatalf("set %q error = %v, want ErrInvalidArgument", bad, err)
		}
	}
	if got := state.SpanningMode(); got != schema.SpanningSingleFoldVertical {
		t.Fatalf("spanning mode changed to %q", got)
	}
	if *invalidations != 1 {
		t.Fatalf("invalidations = %d, want 1", *invalidations)
	}
}

func TestSetFoldSizeValidation(t *testing.T) {
	state, _, _ := newTestState()
	if err := state.SetFoldSize(-1); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("SetFoldSize(-1) = %v, want ErrInvalidArgument", err)
	}
	if err := state.SetFoldSize("abc"); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf(`SetFoldSize("abc") = %v, want ErrInvalidArgument`, err)
	}
	if err := state.SetFoldSize(0); err != nil {
		t.Fatalf("SetFoldSize(0): %v", err)
	}
	if got := state.FoldSize(); got != 0 {
		t.Fatalf("fold size = %v, want 0", got)
	}
	if err := state.SetFoldSize("24.5"); err != nil {
		t.Fatalf(`SetFoldSize("24.5"): %v`, err)
	}
	if got := state.FoldSize(); got != 24.5 {
		t.Fatalf("fold size = %v, want 24.5", got)
	}
	if err := state.SetFoldSize(-3); err == nil {
		t.Fatalf("expected error")
	}
	if got := state.FoldSize(); got != 24.5 {
		t.Fatalf("failed write changed fold size to %v", got)
	}
}

func TestSetBrowserShellSize(t *testing.T) {
	state, kv, _ := newTestState()
	if err := state.SetBrowserShellSize(56); err != nil {
		t.Fatalf("set: %v", err)
	}
	if raw, _ := kv.Get("foldscreen-browser-shell-size"); raw != "56" {
		t.Fatalf("stored shell size = %q, want 56", raw)
	}
	if err := state.SetBrowserShellSize(true); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("bool shell size = %v, want ErrInvalidArgument", err)
	}
}

func TestMalformedStoredValuesReadAsDefaults(t *testing.T) {
	state, kv, _ := newTestState()
	_ = kv.Set("foldscreen-spanning", "triple-fold")
	_ = kv.Set("foldscreen-fold-size", "twenty")
	_ = kv.Set("foldscreen-browser-shell-size", "-8")
	if got := state.Snapshot(); got != schema.DefaultState() {
		t.Fatalf("snapshot = %+v, want defaults", got)
	}
	_ = kv.Set("foldscreen-fold-size", "NaN")
	if got := state.FoldSize(); got != 0 {
		t.Fatalf("NaN fold size read as %v", got)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	state, _, invalidations := newTestState()
	mode := string(schema.SpanningSingleFoldHorizontal)
	err := state.Apply(schema.StatePatch{SpanningMode: &mode, FoldSize: 10, BrowserShellSize: "oops"})
	if !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("apply error = %v, want ErrInvalidArgument", err)
	}
	if got := state.Snapshot(); got != schema.DefaultState() {
		t.Fatalf("partial apply left %+v", got)
	}
	if *invalidations != 0 {
		t.Fatalf("invalidations = %d, want 0", *invalidations)
	}

	if err := state.Apply(schema.StatePatch{SpanningMode: &mode, FoldSize: 10, BrowserShellSize: "4"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := schema.State{SpanningMode: schema.SpanningSingleFoldHorizontal, FoldSize: 10, BrowserShellSize: 4}
	if got := state.Snapshot(); got != want {
		t.Fatalf("snapshot = %+v, want %+v", got, want)
	}
}
