// pkg/core/status.go
package core

import (
	"fmt"
	"strings"
)

// Status is the safety tier of a zone. The zero value is StatusSafe and the
// constants are ordered by severity.
type Status int

const (
	StatusSafe Status = iota
	StatusModerate
	StatusWarning
	StatusEmergency
)

var statusNames = [...]string{"SAFE", "MODERATE", "WARNING", "EMERGENCY"}

func (s Status) String() string {
	if s < StatusSafe || s > StatusEmergency {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus converts a status name (case-insensitive) to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return Status(i), nil
		}
	}
	return StatusSafe, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Severity is the escalation tier of an emergency timer.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	case SeveritySevere:
		return "SEVERE"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ExitStatus is the operational state of an exit, set by an administrator.
type ExitStatus string

const (
	ExitOpen    ExitStatus = "OPEN"
	ExitBlocked ExitStatus = "BLOCKED"
)

// ParseExitStatus accepts OPEN or BLOCKED in any case.
func ParseExitStatus(name string) (ExitStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case string(ExitOpen):
		return ExitOpen, nil
	case string(ExitBlocked):
		return ExitBlocked, nil
	}
	return "", fmt.Errorf("unknown exit status %q", name)
}

// Action is the instruction code issued to a zone.
type Action string

const (
	ActionMonitor     Action = "MONITOR"
	ActionControl     Action = "CONTROL"
	ActionPrepare     Action = "PREPARE"
	ActionHold        Action = "HOLD"
	ActionEvacuate    Action = "EVACUATE"
	ActionAwaitRescue Action = "AWAIT_RESCUE"
)
