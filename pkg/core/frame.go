// pkg/core/frame.go
package core

import "time"

// Detection is one person observed in a frame. ZoneID is empty when the
// detection fell into no zone.
type Detection struct {
	Point      Point   `json:"point"` // pixel space
	Confidence float64 `json:"confidence"`
	ClassName  string  `json:"class_name,omitempty"`
	ZoneID     string  `json:"zone_id,omitempty"`
}

// Frame is the input for one processing cycle.
type Frame struct {
	Number     int64       `json:"frame_number"`
	Timestamp  time.Time   `json:"timestamp"`
	Size       FrameSize   `json:"size"`
	Detections []Detection `json:"detections"`
}

// TimerData is the observable state of a zone's emergency timer.
type TimerData struct {
	Active       bool          `json:"active"`
	Elapsed      time.Duration `json:"elapsed"`
	Formatted    string        `json:"formatted"`
	Severity     Severity      `json:"severity"`
	FlashVisible bool          `json:"flash_visible"`
}

// ZoneSnapshot is the per-frame state of a zone. It is never carried over
// between frames.
type ZoneSnapshot struct {
	ZoneID  string     `json:"zone_id"`
	Name    string     `json:"name"`
	Count   int        `json:"count"`
	Density float64    `json:"density"`
	Status  Status     `json:"status"`
	Trend   int        `json:"trend"` // -1, 0 or +1 versus the previous processed frame
	Timer   *TimerData `json:"timer,omitempty"`
}

// EvacuationInstruction is the directive issued to a zone for the current frame.
// ExitID is empty when no exit applies.
type EvacuationInstruction struct {
	ZoneID           string  `json:"zone_id"`
	ZoneName         string  `json:"zone_name"`
	Status           Status  `json:"status"`
	Action           Action  `json:"action"`
	Message          string  `json:"message"`
	ExitID           string  `json:"exit_id,omitempty"`
	ExitName         string  `json:"exit_name,omitempty"`
	Distance         float64 `json:"distance,omitempty"` // pixels
	CapacityExceeded bool    `json:"capacity_exceeded"`
	Critical         bool    `json:"critical"`
	Count            int     `json:"count"`
	Density          float64 `json:"density"`
}

// FrameResult is everything produced by one processing cycle.
type FrameResult struct {
	FrameNumber  int64                   `json:"frame_number"`
	Timestamp    time.Time               `json:"timestamp"`
	Size         FrameSize               `json:"size"`
	Detections   []Detection             `json:"detections"`
	Zones        []ZoneSnapshot          `json:"zones"`
	Instructions []EvacuationInstruction `json:"instructions"`
	GlobalAlert  Status                  `json:"global_alert"`
	AlarmLevel   string                  `json:"alarm_level"`
	TotalPeople  int                     `json:"total_people"`
	Summary      string                  `json:"summary"`
}

// Counts returns zone id -> person count.
func (r *FrameResult) Counts() map[string]int {
	out := make(map[string]int, len(r.Zones))
	for _, z := range r.Zones {
		out[z.ZoneID] = z.Count
	}
	return out
}

// Densities returns zone id -> persons per square meter.
func (r *FrameResult) Densities() map[string]float64 {
	out := make(map[string]float64, len(r.Zones))
	for _, z := range r.Zones {
		out[z.ZoneID] = z.Density
	}
	return out
}

// Statuses returns zone id -> status.
func (r *FrameResult) Statuses() map[string]Status {
	out := make(map[string]Status, len(r.Zones))
	for _, z := range r.Zones {
		out[z.ZoneID] = z.Status
	}
	return out
}

// Timers returns zone id -> timer data for zones with an active timer.
func (r *FrameResult) Timers() map[string]TimerData {
	out := make(map[string]TimerData)
	for _, z := range r.Zones {
		if z.Timer != nil {
			out[z.ZoneID] = *z.Timer
		}
	}
	return out
}
