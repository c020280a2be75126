// pkg/core/session.go
package core

import (
	"errors"
	"time"
)

// ErrNoSession is returned when frames are recorded outside a session.
var ErrNoSession = errors.New("no active session")

// Session is one continuous monitoring run over a video source.
type Session struct {
	ID        string
	Name      string
	Source    string
	StartTime time.Time
	EndTime   time.Time
}

// SessionSummary aggregates the frames recorded for a session.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	TotalFrames   int       `json:"total_frames"`
	AvgPeople     float64   `json:"avg_people"`
	PeakPeople    int       `json:"peak_people"`
	IncidentCount int       `json:"incidents_count"`
}

// IsIncident reports whether a global alert level counts as an incident frame.
func IsIncident(s Status) bool {
	return s >= StatusWarning
}
