package core

import "pkt.systems/foldscreen/schema"

// Segments partitions the viewport according to the spanning mode.
//
// none yields the whole viewport. A horizontal fold yields top screen, fold
// and bottom screen, centred in the viewport minus the browser shell. A
// vertical fold yields left screen, fold and right screen. Nothing is
// clamped: a fold or shell larger than the viewport produces negative sizes.
func Segments(viewport schema.Viewport, state schema.State) []schema.Segment {
	switch state.SpanningMode {
	case schema.SpanningSingleFoldHorizontal:
		screenCenter := (viewport.Height - state.BrowserShellSize) / 2
		half := state.FoldSize / 2
		return []schema.Segment{
			{Top: 0, Left: 0, Width: viewport.Width, Height: screenCenter - half},
			{Top: screenCenter - half, Left: 0, Width: viewport.Width, Height: state.FoldSize},
			{Top: screenCenter + half, Left: 0, Width: viewport.Width, Height: screenCenter - half},
		}
	case schema.SpanningSingleFoldVertical:
		width := viewport.Width/2 - state.FoldSize/2
		height := viewport.Height
		return []schema.Segment{
			{Top: 0, Left: 0, Width: width, Height: height},
			{Top: 0, Left: width, Width: state.FoldSize, Height: height},
			{Top: 0, Left: viewport.Width/2 + state.FoldSize/2, Width: width, Height: height},
		}
	default:
		return []schema.Segment{
			{Top: 0, Left: 0, Width: viewport.Width, Height: viewport.Height},
		}
	}
}

// WindowSegments drops the fold from a segment list, leaving one or two
// screens.
func WindowSegments(segments []schema.Segment) []schema.Segment {
	if len(segments) < 3 {
		return append([]schema.Segment(nil), segments...)
	}
	return []schema.Segment{segments[0], segments[2]}
}
