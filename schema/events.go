package schema

import "time"

// EventType names a notification dispatched by the hub.
type EventType string

const (
	// EventChange signals that the geometry may have changed and must be re-read.
	EventChange EventType = "change"
	// EventSnapshot seeds a remote observer with the current geometry on connect.
	EventSnapshot EventType = "snapshot"
)

// ChangeEvent is the payload pushed to remote observers after a change
// notification. State and segments are pulled at send time.
type ChangeEvent struct {
	Seq            uint64    `json:"seq"`
	Type           EventType `json:"type"`
	ContextID      ContextID `json:"context"`
	State          State     `json:"state"`
	Viewport       Viewport  `json:"viewport"`
	Segments       []Segment `json:"segments"`
	WindowSegments []Segment `json:"windowSegments"`
	Timestamp      time.Time `json:"timestamp"`
}
