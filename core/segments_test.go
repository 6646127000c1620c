package core

import (
	"reflect"
	"testing"

	"pkt.systems/foldscreen/schema"
)

var viewport800x600 = schema.Viewport{Width: 800, Height: 600}

func TestSegmentsNone(t *testing.T) {
	got := Segments(viewport800x600, schema.State{SpanningMode: schema.SpanningNone, FoldSize: 20})
	want := []schema.Segment{{Top: 0, Left: 0, Width: 800, Height: 600}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments = %+v, want %+v", got, want)
	}
	if window := WindowSegments(got); !reflect.DeepEqual(window, want) {
		t.Fatalf("window segments = %+v, want %+v", window, want)
	}
}

func TestSegmentsHorizontalFold(t *testing.T) {
	got := Segments(viewport800x600, schema.State{SpanningMode: schema.SpanningSingleFoldHorizontal, FoldSize: 20})
	want := []schema.Segment{
		{Top: 0, Left: 0, Width: 800, Height: 290},
		{Top: 290, Left: 0, Width: 800, Height: 20},
		{Top: 310, Left: 0, Width: 800, Height: 290},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments = %+v, want %+v", got, want)
	}
	window := WindowSegments(got)
	if !reflect.DeepEqual(window, []schema.Segment{want[0], want[2]}) {
		t.Fatalf("window segments = %+v", window)
	}
}

func TestSegmentsHorizontalFoldSubtractsShell(t *testing.T) {
	got := Segments(viewport800x600, schema.State{SpanningMode: schema.SpanningSingleFoldHorizontal, FoldSize: 20, BrowserShellSize: 100})
	want := []schema.Segment{
		{Top: 0, Left: 0, Width: 800, Height: 240},
		{Top: 240, Left: 0, Width: 800, Height: 20},
		{Top: 260, Left: 0, Width: 800, Height: 240},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments = %+v, want %+v", got, want)
	}
}

func TestSegmentsVerticalFold(t *testing.T) {
	got := Segments(viewport800x600, schema.State{SpanningMode: schema.SpanningSingleFoldVertical, FoldSize: 20, BrowserShellSize: 100})
	want := []schema.Segment{
		{Top: 0, Left: 0, Width: 390, Height: 600},
		{Top: 0, Left: 390, Width: 20, Height: 600},
		{Top: 0, Left: 410, Width: 390, Height: 600},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments = %+v, want %+v", got, want)
	}
}

func TestSegmentsOversizedFoldIsNotClamped(t *testing.T) {
	got := Segments(schema.Viewport{Width: 100, Height: 100}, schema.State{SpanningMode: schema.SpanningSingleFoldVertical, FoldSize: 300})
	if got[0].Width != -100 || got[2].Width != -100 {
		t.Fatalf("expected negative screen widths, got %+v", got)
	}
	if got[2].Left != 200 {
		t.Fatalf("right screen left = %v, want 200", got[2].Left)
	}

	got = Segments(schema.Viewport{Width: 100, Height: 100}, schema.State{SpanningMode: schema.SpanningSingleFoldHorizontal, BrowserShellSize: 300})
	if got[0].Height != -100 || got[1].Top != -100 {
		t.Fatalf("expected negative geometry, got %+v", got)
	}
}

func TestWindowSegmentsLength(t *testing.T) {
	for _, mode := range schema.SpanningModes {
		for _, fold := range []float64{0, 20, 5000} {
			segments := Segments(viewport800x600, schema.State{SpanningMode: mode, FoldSize: fold})
			window := WindowSegments(segments)
			if len(window) != 1 && len(window) != 2 {
				t.Fatalf("mode %q fold %v: window segments length %d", mode, fold, len(window))
			}
		}
	}
}
