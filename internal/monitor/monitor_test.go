package monitor

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/internal/model"
	"github.com/crowdeval/crowdeval/internal/session"
	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.StatusSnapshot{}))
	return db
}

func runningSession() (*session.Context, *core.Session) {
	ctx := session.NewContext()
	s := session.New("gate", "", time.Now())
	ctx.Start(s)
	ctx.Observe(&core.FrameResult{
		FrameNumber: 12,
		GlobalAlert: core.StatusEmergency,
		TotalPeople: 260,
		Zones: []core.ZoneSnapshot{
			{ZoneID: "zone_0", Status: core.StatusEmergency, Timer: &core.TimerData{Active: true, Elapsed: 45 * time.Second, Formatted: "00:45", Severity: core.SeverityCritical}},
		},
	})
	return ctx, s
}

func TestWriteStatus_NoSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	svc := NewService(Dependencies{Session: session.NewContext(), StatusFile: path, Logger: discard})

	require.NoError(t, svc.WriteStatus())
	assert.NoFileExists(t, path)
}

func TestWriteStatus_FileAndSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx, s := runningSession()
	path := filepath.Join(t.TempDir(), "logs", "status.json")

	svc := NewService(Dependencies{
		DB:              db,
		Logger:          discard,
		Session:         ctx,
		StatusFile:      path,
		IsDatabaseValid: func() bool { return true },
		PendingWrites:   func() int { return 7 },
	})
	require.NoError(t, svc.WriteStatus())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, s.ID, doc["session_id"])
	assert.Equal(t, "EMERGENCY", doc["global_alert"])
	assert.Equal(t, 260.0, doc["total_people"])
	assert.Equal(t, 7.0, doc["pending_writes"])
	assert.Contains(t, doc["active_timers"], "zone_0")

	var snap model.StatusSnapshot
	require.NoError(t, db.First(&snap).Error)
	assert.Equal(t, s.ID, snap.SessionID)
	assert.Equal(t, int64(12), snap.FrameNumber)
	assert.Equal(t, "EMERGENCY", snap.GlobalStatus)
	assert.Contains(t, string(snap.ActiveTimers), `"formatted":"00:45"`)
}

func TestWriteStatus_DatabaseInvalid(t *testing.T) {
	db := newTestDB(t)
	ctx, _ := runningSession()

	svc := NewService(Dependencies{
		DB:              db,
		Logger:          discard,
		Session:         ctx,
		IsDatabaseValid: func() bool { return false },
	})
	require.NoError(t, svc.WriteStatus())

	var count int64
	db.Model(&model.StatusSnapshot{}).Count(&count)
	assert.Zero(t, count)
}

func TestStartStop(t *testing.T) {
	ctx, _ := runningSession()
	path := filepath.Join(t.TempDir(), "status.json")
	svc := NewService(Dependencies{Session: ctx, StatusFile: path, Logger: discard, Interval: 10 * time.Millisecond})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(Dependencies{Session: session.NewContext()})
	assert.Equal(t, time.Second, svc.deps.Interval)
	assert.NotNil(t, svc.deps.Logger)
}
