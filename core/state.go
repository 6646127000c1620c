package core

import (
	"fmt"
	"math"
	"strconv"

	"pkt.systems/foldscreen/schema"
)

// GeometryState holds the spanning mode, fold size and browser shell size of
// one browsing context. Values live in the context's store; reads are lenient
// and fall back to defaults, writes are validated. Every successful write
// requests a coalesced change notification.
type GeometryState struct {
	kv         KV
	keys       schema.StoreKeys
	invalidate func()
}

// NewGeometryState binds the state to kv using keys derived from namespace.
// invalidate may be nil.
func NewGeometryState(kv KV, namespace string, invalidate func()) *GeometryState {
	if invalidate == nil {
		invalidate = func() {}
	}
	return &GeometryState{
		kv:         kv,
		keys:       schema.KeysFor(namespace),
		invalidate: invalidate,
	}
}

// SpanningMode returns the stored mode, or none when absent or unrecognised.
func (s *GeometryState) SpanningMode() schema.SpanningMode {
	raw, ok := s.kv.Get(s.keys.SpanningMode)
	if !ok {
		return schema.SpanningNone
	}
	mode := schema.SpanningMode(raw)
	if !mode.Valid() {
		return schema.SpanningNone
	}
	return mode
}

// FoldSize returns the stored fold size, or 0 when absent or malformed.
func (s *GeometryState) FoldSize() float64 {
	return s.readSize(s.keys.FoldSize)
}

// BrowserShellSize returns the stored shell size, or 0 when absent or malformed.
func (s *GeometryState) BrowserShellSize() float64 {
	return s.readSize(s.keys.BrowserShellSize)
}

// Snapshot returns all three fields.
func (s *GeometryState) Snapshot() schema.State {
	return schema.State{
		SpanningMode:     s.SpanningMode(),
		FoldSize:         s.FoldSize(),
		BrowserShellSize: s.BrowserShellSize(),
	}
}

// SetSpanningMode stores mode when it is one of the recognised literals.
func (s *GeometryState) SetSpanningMode(mode string) error {
	parsed, err := schema.ParseSpanningMode(mode)
	if err != nil {
		return err
	}
	if err := s.kv.Set(s.keys.SpanningMode, string(parsed)); err != nil {
		return fmt.Errorf("store spanning mode: %w", err)
	}
	s.invalidate()
	return nil
}

// SetFoldSize stores a fold size; see schema.ParseSize for accepted values.
func (s *GeometryState) SetFoldSize(value any) error {
	return s.writeSize(s.keys.FoldSize, value)
}

// SetBrowserShellSize stores a browser shell size; see schema.ParseSize for accepted values.
func (s *GeometryState) SetBrowserShellSize(value any) error {
	return s.writeSize(s.keys.BrowserShellSize, value)
}

// Apply validates every field of patch and only then writes them, so an
// invalid field leaves the state untouched.
func (s *GeometryState) Apply(patch schema.StatePatch) error {
	var (
		mode              schema.SpanningMode
		fold, shell       float64
		err               error
		hasFold, hasShell bool
	)
	if patch.SpanningMode != nil {
		if mode, err = schema.ParseSpanningMode(*patch.SpanningMode); err != nil {
			return err
		}
	}
	if patch.FoldSize != nil {
		if fold, err = schema.ParseSize(patch.FoldSize); err != nil {
			return fmt.Errorf("foldSize: %w", err)
		}
		hasFold = true
	}
	if patch.BrowserShellSize != nil {
		if shell, err = schema.ParseSize(patch.BrowserShellSize); err != nil {
			return fmt.Errorf("browserShellSize: %w", err)
		}
		hasShell = true
	}
	if mode != "" {
		if err := s.SetSpanningMode(string(mode)); err != nil {
			return err
		}
	}
	if hasFold {
		if err := s.SetFoldSize(fold); err != nil {
			return err
		}
	}
	if hasShell {
		if err := s.SetBrowserShellSize(shell); err != nil {
			return err
		}
	}
	return nil
}

func (s *GeometryState) readSize(key string) float64 {
	raw, ok := s.kv.Get(key)
	if !ok {
		return 0
	}
	size, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		return 0
	}
	return size
}

func (s *GeometryState) writeSize(key string, value any) error {
	size, err := schema.ParseSize(value)
	if err != nil {
		return err
	}
	if err := s.kv.Set(key, schema.FormatSize(size)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	s.invalidate()
	return nil
}
