// Package streaming defines the JSON-lines ingest protocol produced by the
// external person detector.
package streaming

import "encoding/json"

// Message type constants matching the ingest protocol.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeFrame        = "frame"
	TypeExitStatus   = "exit_status"
)

// Envelope wraps every message on the stream, one per line.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionStartPayload opens a monitoring session.
type SessionStartPayload struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// BBox is an axis-aligned bounding box in pixels, origin top-left.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// DetectionPayload is one detector output. Either BBox or Center must be set;
// Confidence defaults to 1 when omitted.
type DetectionPayload struct {
	BBox       *BBox       `json:"bbox,omitempty"`
	Center     *[2]float64 `json:"center,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	ClassName  string      `json:"class_name,omitempty"`
}

// FramePayload carries the detections of one frame. Timestamp is unix seconds.
type FramePayload struct {
	FrameNumber int64              `json:"frame_number"`
	Timestamp   float64            `json:"timestamp"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Detections  []DetectionPayload `json:"detections"`
}

// ExitStatusPayload toggles an exit between OPEN and BLOCKED.
type ExitStatusPayload struct {
	ExitID string `json:"exit_id"`
	Status string `json:"status"`
}
