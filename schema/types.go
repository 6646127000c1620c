package schema

// ContextID identifies a browsing context. Each context owns exactly one
// emulator instance and one persisted state record.
type ContextID string

// DefaultContextID is used when a caller does not name a context.
const DefaultContextID ContextID = "default"

// SpanningMode describes how the emulated device is folded.
type SpanningMode string

const (
	// SpanningNone is an unfolded, single screen layout.
	SpanningNone SpanningMode = "none"
	// SpanningSingleFoldHorizontal places one fold across the viewport, splitting it top/bottom.
	SpanningSingleFoldHorizontal SpanningMode = "single-fold-horizontal"
	// SpanningSingleFoldVertical places one fold down the viewport, splitting it left/right.
	SpanningSingleFoldVertical SpanningMode = "single-fold-vertical"
)

// SpanningModes lists every recognised spanning mode in cycle order.
var SpanningModes = []SpanningMode{
	SpanningNone,
	SpanningSingleFoldHorizontal,
	SpanningSingleFoldVertical,
}

// Valid reports whether m is one of the recognised literals.
func (m SpanningMode) Valid() bool {
	switch m {
	case SpanningNone, SpanningSingleFoldHorizontal, SpanningSingleFoldVertical:
		return true
	default:
		return false
	}
}

// Next returns the mode following m in SpanningModes, wrapping around.
func (m SpanningMode) Next() SpanningMode {
	for i, mode := range SpanningModes {
		if mode == m {
			return SpanningModes[(i+1)%len(SpanningModes)]
		}
	}
	return SpanningNone
}

// State is a snapshot of the emulated display geometry.
type State struct {
	SpanningMode     SpanningMode `json:"spanningMode"`
	FoldSize         float64      `json:"foldSize"`
	BrowserShellSize float64      `json:"browserShellSize"`
}

// DefaultState returns the geometry used when nothing has been persisted.
func DefaultState() State {
	return State{SpanningMode: SpanningNone}
}

// Viewport is the size of the layout viewport in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Segment is one rectangular region of the viewport: a screen or the fold.
// Dimensions are not clamped and may be negative when the fold or shell
// exceeds the viewport.
type Segment struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the bottom edge of the segment.
func (s Segment) Bottom() float64 {
	return s.Top + s.Height
}

// Right returns the right edge of the segment.
func (s Segment) Right() float64 {
	return s.Left + s.Width
}
