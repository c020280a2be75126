// Package timer tracks how long each zone has continuously been in the
// EMERGENCY state.
package timer

import (
	"fmt"
	"sort"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
)

// Config holds the severity escalation points and the flash period used in
// the SEVERE tier.
type Config struct {
	CriticalAfter time.Duration `json:"criticalAfter" mapstructure:"criticalAfter"`
	SevereAfter   time.Duration `json:"severeAfter" mapstructure:"severeAfter"`
	FlashInterval time.Duration `json:"flashInterval" mapstructure:"flashInterval"`
}

// DefaultConfig escalates to CRITICAL after 30s and SEVERE after 60s.
func DefaultConfig() Config {
	return Config{
		CriticalAfter: 30 * time.Second,
		SevereAfter:   60 * time.Second,
		FlashInterval: 500 * time.Millisecond,
	}
}

// MinDuration is the smallest accepted escalation point or flash interval.
// Anything shorter is a unit mistake, such as a number of seconds read as
// nanoseconds.
const MinDuration = time.Millisecond

// Validate requires MinDuration <= CriticalAfter < SevereAfter and a flash
// interval of at least MinDuration.
func (c Config) Validate() error {
	if c.CriticalAfter < MinDuration || c.SevereAfter <= c.CriticalAfter {
		return fmt.Errorf("timer thresholds must satisfy %s <= critical (%s) < severe (%s)", MinDuration, c.CriticalAfter, c.SevereAfter)
	}
	if c.FlashInterval < MinDuration {
		return fmt.Errorf("flash interval must be at least %s, got %s", MinDuration, c.FlashInterval)
	}
	return nil
}

type state struct {
	start           time.Time
	elapsed         time.Duration
	severity        core.Severity
	flashVisible    bool
	lastFlashToggle time.Time
}

// Manager owns the timer table of one monitoring session. It is driven from
// the frame loop and is not safe for concurrent use.
type Manager struct {
	cfg    Config
	timers map[string]*state
}

// NewManager creates an empty timer table.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		timers: make(map[string]*state),
	}
}

// OnFrame applies the zone's status for the frame observed at now.
// Entering EMERGENCY starts a timer, staying in EMERGENCY advances it and any
// other status deletes it. A zone that drops out and returns starts from zero.
func (m *Manager) OnFrame(zoneID string, status core.Status, now time.Time) {
	st, ok := m.timers[zoneID]

	if status != core.StatusEmergency {
		if ok {
			delete(m.timers, zoneID)
		}
		return
	}

	if !ok {
		m.timers[zoneID] = &state{
			start:           now,
			severity:        core.SeverityWarning,
			flashVisible:    true,
			lastFlashToggle: now,
		}
		return
	}

	st.elapsed = now.Sub(st.start)
	if st.elapsed < 0 {
		st.elapsed = 0
	}
	st.severity = m.severityFor(st.elapsed)

	if st.severity == core.SeveritySevere && now.Sub(st.lastFlashToggle) >= m.cfg.FlashInterval {
		st.flashVisible = !st.flashVisible
		st.lastFlashToggle = now
	}
}

func (m *Manager) severityFor(elapsed time.Duration) core.Severity {
	switch {
	case elapsed >= m.cfg.SevereAfter:
		return core.SeveritySevere
	case elapsed >= m.cfg.CriticalAfter:
		return core.SeverityCritical
	default:
		return core.SeverityWarning
	}
}

// TimerData returns the zone's timer as of its last update, or nil when the
// zone has no active timer.
func (m *Manager) TimerData(zoneID string) *core.TimerData {
	st, ok := m.timers[zoneID]
	if !ok {
		return nil
	}
	return &core.TimerData{
		Active:       true,
		Elapsed:      st.elapsed,
		Formatted:    FormatElapsed(st.elapsed),
		Severity:     st.severity,
		FlashVisible: st.flashVisible,
	}
}

// Active returns the ids of zones with a running timer, sorted.
func (m *Manager) Active() []string {
	ids := make([]string, 0, len(m.timers))
	for id := range m.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset drops every timer.
func (m *Manager) Reset() {
	m.timers = make(map[string]*state)
}

// FormatElapsed renders a duration as MM:SS, truncating fractional seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
