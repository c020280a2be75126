// internal/storage/memory/memory.go
package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/crowdeval/crowdeval/internal/config"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// FrameRecord is the per-frame entry of an exported session.
type FrameRecord struct {
	Timestamp     float64                `json:"timestamp"` // unix seconds
	Frame         int64                  `json:"frame"`
	TotalPeople   int                    `json:"total_people"`
	ZoneCounts    map[string]int         `json:"zone_counts"`
	ZoneDensities map[string]float64     `json:"zone_densities"`
	ZoneStatuses  map[string]core.Status `json:"zone_statuses"`
	GlobalStatus  core.Status            `json:"global_status"`
	AlarmLevel    string                 `json:"alarm_level,omitempty"`
}

// Backend keeps session frames in memory and exports them to JSON when the
// session ends.
type Backend struct {
	cfg config.MemoryConfig
	log *slog.Logger

	session *core.Session
	layout  core.Layout
	frames  []FrameRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, log: logger}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding anything unexported.
func (b *Backend) StartSession(session *core.Session, layout *core.Layout) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = session
	b.layout = layout.Clone()
	b.frames = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	if b.session.EndTime.IsZero() {
		b.session.EndTime = time.Now()
	}
	err := b.exportJSON()
	b.session = nil
	b.frames = nil
	return err
}

// RecordFrame appends the frame's aggregate state.
func (b *Backend) RecordFrame(result *core.FrameResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	b.frames = append(b.frames, FrameRecord{
		Timestamp:     float64(result.Timestamp.UnixNano()) / float64(time.Second),
		Frame:         result.FrameNumber,
		TotalPeople:   result.TotalPeople,
		ZoneCounts:    result.Counts(),
		ZoneDensities: result.Densities(),
		ZoneStatuses:  result.Statuses(),
		GlobalStatus:  result.GlobalAlert,
		AlarmLevel:    result.AlarmLevel,
	})
	return nil
}

// FrameCount returns the number of frames recorded in the current session.
func (b *Backend) FrameCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}

// ExportedFilePath returns the file written by the last EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
