package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/google/uuid"
)

// Status is a point-in-time view of the running session.
type Status struct {
	SessionID       string                    `json:"session_id"`
	SessionName     string                    `json:"session_name"`
	StartedAt       time.Time                 `json:"started_at"`
	FrameNumber     int64                     `json:"frame_number"`
	FrameTime       time.Time                 `json:"frame_time"`
	FramesProcessed int                       `json:"frames_processed"`
	GlobalAlert     core.Status               `json:"global_alert"`
	AlarmLevel      string                    `json:"alarm_level"`
	TotalPeople     int                       `json:"total_people"`
	Summary         string                    `json:"summary"`
	ActiveTimers    map[string]core.TimerData `json:"active_timers"`
}

// Context holds the current session and its latest frame result. It is
// written by the frame handler and read by the status monitor and logger.
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	latest  *core.FrameResult
	frames  int
}

// NewContext creates a Context with no session.
func NewContext() *Context {
	return &Context{}
}

// New builds a session with a fresh id.
func New(name, source string, start time.Time) *core.Session {
	if name == "" {
		name = "Session " + start.Format("2006-01-02 15:04:05")
	}
	return &core.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		StartTime: start,
	}
}

// Start makes s the current session.
func (c *Context) Start(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.latest = nil
	c.frames = 0
}

// End stamps the end time on the current session and clears it. It
// returns nil when no session is running.
func (c *Context) End(at time.Time) *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil {
		return nil
	}
	s.EndTime = at
	c.session = nil
	c.latest = nil
	c.frames = 0
	return s
}

// Current returns the running session or nil.
func (c *Context) Current() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Active reports whether a session is running.
func (c *Context) Active() bool {
	return c.Current() != nil
}

// Observe records the latest processed frame.
func (c *Context) Observe(r *core.FrameResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = r
	c.frames++
}

// Status returns the current view. ok is false when no session is running.
func (c *Context) Status() (st Status, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Status{}, false
	}

	st = Status{
		SessionID:       c.session.ID,
		SessionName:     c.session.Name,
		StartedAt:       c.session.StartTime,
		FramesProcessed: c.frames,
		ActiveTimers:    map[string]core.TimerData{},
	}
	if r := c.latest; r != nil {
		st.FrameNumber = r.FrameNumber
		st.FrameTime = r.Timestamp
		st.GlobalAlert = r.GlobalAlert
		st.AlarmLevel = r.AlarmLevel
		st.TotalPeople = r.TotalPeople
		st.Summary = r.Summary
		st.ActiveTimers = r.Timers()
	}
	return st, true
}

// LogAttrs returns the attributes added to every log record while a
// session is running.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	return []slog.Attr{slog.String("session", c.session.ID)}
}
