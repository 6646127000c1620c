package schema

// ActionUpdate is the only action understood by the cross-context bridge.
const ActionUpdate = "update"

// UpdateMessage is posted by a controlling context to change the geometry.
type UpdateMessage struct {
	Action string     `json:"action"`
	Value  StatePatch `json:"value"`
}

// StatePatch carries the fields of an update message. Absent fields are left
// untouched. Sizes stay untyped so they are coerced by the same rules as the
// setters (numbers and numeric strings).
type StatePatch struct {
	SpanningMode     *string `json:"spanningMode,omitempty"`
	FoldSize         any     `json:"foldSize,omitempty"`
	BrowserShellSize any     `json:"browserShellSize,omitempty"`
}

// Empty reports whether the patch names no field.
func (p StatePatch) Empty() bool {
	return p.SpanningMode == nil && p.FoldSize == nil && p.BrowserShellSize == nil
}

// ResizeRequest reports a new viewport size for a context.
type ResizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CreateContextResponse returns the id of a newly created context.
type CreateContextResponse struct {
	ContextID ContextID `json:"context"`
}

// ListContextsResponse lists live contexts.
type ListContextsResponse struct {
	Contexts []ContextID `json:"contexts"`
}

// StateResponse returns the current geometry of a context.
type StateResponse struct {
	ContextID ContextID `json:"context"`
	State     State     `json:"state"`
	Viewport  Viewport  `json:"viewport"`
}

// SegmentsResponse returns derived segments for a context.
type SegmentsResponse struct {
	ContextID ContextID `json:"context"`
	Viewport  Viewport  `json:"viewport"`
	Segments  []Segment `json:"segments"`
}
