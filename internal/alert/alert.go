// Package alert derives the audible alarm level from zone statuses. Playing
// the pattern is left to a Sink.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crowdeval/crowdeval/internal/evacuation"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// Level is an alarm level. It extends the zone statuses with CRITICAL,
// raised when more than one zone is in EMERGENCY at once.
type Level string

const (
	LevelSafe      Level = "SAFE"
	LevelModerate  Level = "MODERATE"
	LevelWarning   Level = "WARNING"
	LevelEmergency Level = "EMERGENCY"
	LevelCritical  Level = "CRITICAL"
)

// Pattern is the beep pattern for a level: Beeps beeps repeated every Interval.
type Pattern struct {
	Beeps    int
	Interval time.Duration
}

var patterns = map[Level]Pattern{
	LevelSafe:      {Beeps: 0, Interval: 0},
	LevelModerate:  {Beeps: 1, Interval: 5 * time.Second},
	LevelWarning:   {Beeps: 2, Interval: 3 * time.Second},
	LevelEmergency: {Beeps: 3, Interval: time.Second},
	LevelCritical:  {Beeps: 5, Interval: 500 * time.Millisecond},
}

// PatternFor returns the beep pattern of a level; unknown levels are silent.
func PatternFor(l Level) Pattern {
	return patterns[l]
}

// LevelFor computes the alarm level for one frame.
func LevelFor(statuses []core.Status) Level {
	emergencies := 0
	for _, s := range statuses {
		if s == core.StatusEmergency {
			emergencies++
		}
	}
	if emergencies >= 2 {
		return LevelCritical
	}
	return Level(evacuation.GlobalAlertLevel(statuses).String())
}

// Sink receives alarm level changes.
type Sink interface {
	Alarm(level Level, pattern Pattern)
}

// LogSink reports level changes through slog.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Alarm(level Level, pattern Pattern) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lvl := slog.LevelInfo
	if level == LevelEmergency || level == LevelCritical {
		lvl = slog.LevelWarn
	}
	logger.Log(context.Background(), lvl, "Alarm level changed", "alarm", level, "beeps", pattern.Beeps, "interval", pattern.Interval)
}

// Escalator tracks the current level and notifies its sinks on change only.
type Escalator struct {
	mu      sync.RWMutex
	current Level
	sinks   []Sink
}

// NewEscalator starts at SAFE.
func NewEscalator(sinks ...Sink) *Escalator {
	return &Escalator{current: LevelSafe, sinks: sinks}
}

// Update recomputes the level and reports whether it changed.
func (e *Escalator) Update(statuses []core.Status) (Level, bool) {
	level := LevelFor(statuses)

	e.mu.Lock()
	if level == e.current {
		e.mu.Unlock()
		return level, false
	}
	e.current = level
	sinks := e.sinks
	e.mu.Unlock()

	p := PatternFor(level)
	for _, s := range sinks {
		s.Alarm(level, p)
	}
	return level, true
}

// Current returns the last computed level.
func (e *Escalator) Current() Level {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Reset silences the alarm without notifying sinks.
func (e *Escalator) Reset() {
	e.mu.Lock()
	e.current = LevelSafe
	e.mu.Unlock()
}
