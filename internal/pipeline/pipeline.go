// Package pipeline runs the per-frame evaluation: assignment, density,
// classification, emergency timers, routing and instructions.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/crowdeval/crowdeval/internal/alert"
	"github.com/crowdeval/crowdeval/internal/density"
	"github.com/crowdeval/crowdeval/internal/evacuation"
	"github.com/crowdeval/crowdeval/internal/timer"
	"github.com/crowdeval/crowdeval/internal/zone"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// ErrUnknownExit is returned when toggling an exit id that is not in the layout.
var ErrUnknownExit = errors.New("unknown exit")

// Config controls frame processing.
type Config struct {
	Thresholds    density.Thresholds
	Timer         timer.Config
	MinConfidence float64
	FrameSkip     int
}

// DefaultConfig processes every frame and drops detections under 0.5 confidence.
func DefaultConfig() Config {
	return Config{
		Thresholds:    density.DefaultThresholds(),
		Timer:         timer.DefaultConfig(),
		MinConfidence: 0.5,
		FrameSkip:     1,
	}
}

// Processor evaluates frames for one session. It owns the session's timer
// table and must be driven from a single goroutine.
type Processor struct {
	cfg    Config
	layout core.Layout
	timers *timer.Manager
	prev   map[string]int
}

// New creates a processor over a private copy of layout.
func New(layout core.Layout, cfg Config) *Processor {
	if cfg.FrameSkip < 1 {
		cfg.FrameSkip = 1
	}
	return &Processor{
		cfg:    cfg,
		layout: layout.Clone(),
		timers: timer.NewManager(cfg.Timer),
		prev:   make(map[string]int),
	}
}

// Layout returns a copy of the current layout, including exit toggles.
func (p *Processor) Layout() core.Layout {
	return p.layout.Clone()
}

// ShouldProcess reports whether a frame number falls on the processing stride.
func (p *Processor) ShouldProcess(frameNumber int64) bool {
	return frameNumber%int64(p.cfg.FrameSkip) == 0
}

// SetExitStatus changes an exit's operational status. It takes effect from
// the next processed frame.
func (p *Processor) SetExitStatus(exitID string, status core.ExitStatus) error {
	for i := range p.layout.Exits {
		if p.layout.Exits[i].ID == exitID {
			p.layout.Exits[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownExit, exitID)
}

// ActiveTimers returns the zones with a running emergency timer.
func (p *Processor) ActiveTimers() []string {
	return p.timers.Active()
}

// Reset clears the timer table and trend history.
func (p *Processor) Reset() {
	p.timers.Reset()
	p.prev = make(map[string]int)
}

// Process evaluates one frame. Steps run in a fixed order and all state
// derived from the frame is rebuilt from scratch.
func (p *Processor) Process(frame core.Frame) *core.FrameResult {
	dets := make([]core.Detection, 0, len(frame.Detections))
	for _, d := range frame.Detections {
		if d.Confidence >= p.cfg.MinConfidence {
			dets = append(dets, d)
		}
	}

	counts := zone.Assign(dets, p.layout.Zones, frame.Size)

	snaps := make([]core.ZoneSnapshot, len(p.layout.Zones))
	statuses := make([]core.Status, len(p.layout.Zones))
	total := 0
	for i, z := range p.layout.Zones {
		count := counts[z.ID]
		d := density.Density(count, z.Area)
		status := p.cfg.Thresholds.Classify(d)

		p.timers.OnFrame(z.ID, status, frame.Timestamp)

		snaps[i] = core.ZoneSnapshot{
			ZoneID:  z.ID,
			Name:    z.Name,
			Count:   count,
			Density: d,
			Status:  status,
			Trend:   trend(p.prev, z.ID, count),
			Timer:   p.timers.TimerData(z.ID),
		}
		statuses[i] = status
		total += count
	}
	p.prev = counts

	return &core.FrameResult{
		FrameNumber:  frame.Number,
		Timestamp:    frame.Timestamp,
		Size:         frame.Size,
		Detections:   dets,
		Zones:        snaps,
		Instructions: evacuation.Generate(snaps, p.layout.Zones, p.layout.Exits, frame.Size),
		GlobalAlert:  evacuation.GlobalAlertLevel(statuses),
		AlarmLevel:   string(alert.LevelFor(statuses)),
		TotalPeople:  total,
		Summary:      evacuation.SummaryMessage(snaps),
	}
}

func trend(prev map[string]int, id string, count int) int {
	last, ok := prev[id]
	switch {
	case !ok || count == last:
		return 0
	case count > last:
		return 1
	default:
		return -1
	}
}
