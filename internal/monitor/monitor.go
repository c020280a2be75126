package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crowdeval/crowdeval/internal/model"
	"github.com/crowdeval/crowdeval/internal/session"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB              *gorm.DB
	Logger          *slog.Logger
	Session         *session.Context
	StatusFile      string
	Interval        time.Duration
	IsDatabaseValid func() bool
	PendingWrites   func() int
}

// Report is the document written to the status file.
type Report struct {
	session.Status
	PendingWrites int       `json:"pending_writes"`
	WrittenAt     time.Time `json:"written_at"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current report. ok is false when no session is running.
func (s *Service) GetProgramStatus() (report Report, ok bool) {
	st, ok := s.deps.Session.Status()
	if !ok {
		return Report{}, false
	}
	report = Report{Status: st, WrittenAt: time.Now()}
	if s.deps.PendingWrites != nil {
		report.PendingWrites = s.deps.PendingWrites()
	}
	return report, true
}

// WriteStatus writes one report to the status file and, when the database
// is available, one status snapshot row. It is a no-op without a session.
func (s *Service) WriteStatus() error {
	report, ok := s.GetProgramStatus()
	if !ok {
		return nil
	}

	if s.deps.StatusFile != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		if err := writeFileAtomic(s.deps.StatusFile, data); err != nil {
			return fmt.Errorf("failed to write status file: %w", err)
		}
	}

	if s.deps.DB != nil && s.deps.IsDatabaseValid != nil && s.deps.IsDatabaseValid() {
		timers, err := json.Marshal(report.ActiveTimers)
		if err != nil {
			return fmt.Errorf("failed to marshal timers: %w", err)
		}
		snapshot := model.StatusSnapshot{
			Time:         report.WrittenAt,
			SessionID:    report.SessionID,
			FrameNumber:  report.FrameNumber,
			GlobalStatus: report.GlobalAlert.String(),
			TotalPeople:  report.TotalPeople,
			ActiveTimers: timers,
		}
		if err := s.deps.DB.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("failed to insert status snapshot: %w", err)
		}
	}
	return nil
}

// writeFileAtomic replaces path so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(s.done)
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
