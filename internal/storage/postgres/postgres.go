// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crowdeval/crowdeval/internal/database"
	"github.com/crowdeval/crowdeval/internal/model"
	"github.com/crowdeval/crowdeval/internal/model/convert"
	"github.com/crowdeval/crowdeval/internal/queue"
	"github.com/crowdeval/crowdeval/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	// defaultMaxPending caps queued rows per table while the database is
	// unreachable.
	defaultMaxPending = 200_000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	MaxPending    int
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Frames      *queue.Queue[model.FrameRecord]
	ZoneSamples *queue.Queue[model.ZoneSample]
}

func newQueues(limit int) *queues {
	return &queues{
		Frames:      queue.NewBounded[model.FrameRecord](limit),
		ZoneSamples: queue.NewBounded[model.ZoneSample](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	mu      sync.RWMutex
	session *core.Session

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.MaxPending <= 0 {
		deps.MaxPending = defaultMaxPending
	}
	return &Backend{deps: deps, queues: newQueues(deps.MaxPending)}
}

// DB returns the underlying connection, nil before Init.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return nil
}

// StartSession inserts the session row together with its zone and exit definitions.
func (b *Backend) StartSession(session *core.Session, layout *core.Layout) error {
	if b.deps.DB == nil {
		return fmt.Errorf("backend not initialized")
	}

	row, err := convert.CoreToSession(*session, *layout)
	if err != nil {
		return err
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	b.mu.Lock()
	b.session = session
	b.mu.Unlock()
	return nil
}

// EndSession flushes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	session := b.session
	b.session = nil
	b.mu.Unlock()

	if session == nil {
		return core.ErrNoSession
	}

	b.Flush()

	end := session.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", session.ID).
		Update("end_time", end).Error
	if err != nil {
		return fmt.Errorf("failed to update session end time: %w", err)
	}
	return nil
}

// RecordFrame queues the frame aggregate and one sample per zone.
func (b *Backend) RecordFrame(result *core.FrameResult) error {
	b.mu.RLock()
	session := b.session
	b.mu.RUnlock()
	if session == nil {
		return core.ErrNoSession
	}

	rec, err := convert.CoreToFrameRecord(session.ID, result)
	if err != nil {
		return fmt.Errorf("failed to convert frame %d: %w", result.FrameNumber, err)
	}
	b.queues.Frames.Push(rec)
	b.queues.ZoneSamples.Push(convert.CoreToZoneSamples(session.ID, result)...)
	return nil
}

// Pending returns the number of queued, unwritten rows.
func (b *Backend) Pending() int {
	return b.queues.Frames.Len() + b.queues.ZoneSamples.Len()
}

// Flush writes every queued row now.
func (b *Backend) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	writeQueue(b.deps.DB, b.queues.Frames, "frame records", b.deps.Logger)
	writeQueue(b.deps.DB, b.queues.ZoneSamples, "zone samples", b.deps.Logger)
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if n := q.TakeDropped(); n > 0 {
		log.Warn("Write queue full, discarded oldest rows", "table", name, "count", n)
	}
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error writing batch", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Requeue(items)
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing batch", "table", name, "error", err)
		q.Requeue(items)
		return
	}
	log.Debug("Wrote batch", "table", name, "count", len(items))
}

// writeLoop periodically drains the queues into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// summaryRow is the per-session frame aggregate.
type summaryRow struct {
	SessionID  string
	Frames     int
	AvgPeople  float64
	PeakPeople int
	Incidents  int
}

// Summaries aggregates stored frames per session, newest session first.
// Sessions without frames are skipped.
func (b *Backend) Summaries() ([]core.SessionSummary, error) {
	db := b.deps.DB
	if db == nil {
		return nil, fmt.Errorf("backend not initialized")
	}

	var rows []summaryRow
	err := db.Model(&model.FrameRecord{}).
		Select(`session_id,
			COUNT(*) AS frames,
			AVG(total_people) AS avg_people,
			MAX(total_people) AS peak_people,
			SUM(CASE WHEN global_status IN ? THEN 1 ELSE 0 END) AS incidents`, incidentStatuses()).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate frames: %w", err)
	}
	bySession := make(map[string]summaryRow, len(rows))
	for _, r := range rows {
		bySession[r.SessionID] = r
	}

	var sessions []model.Session
	if err := db.Order("start_time DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]core.SessionSummary, 0, len(rows))
	for _, s := range sessions {
		r, ok := bySession[s.ID]
		if !ok || r.Frames == 0 {
			continue
		}
		summary := convert.SessionToSummary(s)
		summary.TotalFrames = r.Frames
		summary.AvgPeople = r.AvgPeople
		summary.PeakPeople = r.PeakPeople
		summary.IncidentCount = r.Incidents
		out = append(out, summary)
	}
	return out, nil
}

func incidentStatuses() []string {
	var out []string
	for s := core.StatusSafe; s <= core.StatusEmergency; s++ {
		if core.IsIncident(s) {
			out = append(out, s.String())
		}
	}
	return out
}
