package session

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s := New("Concert", "cam.mp4", start)
	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Concert", s.Name)
	assert.Equal(t, "cam.mp4", s.Source)
	assert.Equal(t, start, s.StartTime)

	unnamed := New("", "", start)
	assert.Equal(t, "Session 2024-05-01 12:00:00", unnamed.Name)
	assert.NotEqual(t, s.ID, unnamed.ID)
}

func TestContext_Lifecycle(t *testing.T) {
	c := NewContext()
	assert.False(t, c.Active())
	assert.Nil(t, c.LogAttrs())
	_, ok := c.Status()
	assert.False(t, ok)
	assert.Nil(t, c.End(time.Now()))

	s := New("gate", "", time.Now())
	c.Start(s)
	assert.True(t, c.Active())
	assert.Same(t, s, c.Current())
	assert.Equal(t, []slog.Attr{slog.String("session", s.ID)}, c.LogAttrs())

	st, ok := c.Status()
	require.True(t, ok)
	assert.Equal(t, s.ID, st.SessionID)
	assert.Zero(t, st.FramesProcessed)
	assert.Empty(t, st.ActiveTimers)

	end := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	ended := c.End(end)
	require.Same(t, s, ended)
	assert.Equal(t, end, ended.EndTime)
	assert.False(t, c.Active())
}

func TestContext_Observe(t *testing.T) {
	c := NewContext()
	c.Start(New("gate", "", time.Now()))

	ts := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	c.Observe(&core.FrameResult{FrameNumber: 1})
	c.Observe(&core.FrameResult{
		FrameNumber: 2,
		Timestamp:   ts,
		GlobalAlert: core.StatusEmergency,
		AlarmLevel:  "EMERGENCY",
		TotalPeople: 260,
		Summary:     "EMERGENCY in Zone A! Total: 260 people",
		Zones: []core.ZoneSnapshot{
			{ZoneID: "zone_0", Status: core.StatusEmergency, Timer: &core.TimerData{Active: true, Elapsed: 5 * time.Second, Formatted: "00:05"}},
			{ZoneID: "zone_1"},
		},
	})

	st, ok := c.Status()
	require.True(t, ok)
	assert.Equal(t, 2, st.FramesProcessed)
	assert.Equal(t, int64(2), st.FrameNumber)
	assert.Equal(t, ts, st.FrameTime)
	assert.Equal(t, core.StatusEmergency, st.GlobalAlert)
	assert.Equal(t, 260, st.TotalPeople)
	require.Contains(t, st.ActiveTimers, "zone_0")
	assert.Equal(t, "00:05", st.ActiveTimers["zone_0"].Formatted)
	assert.NotContains(t, st.ActiveTimers, "zone_1")

	// a new session starts from scratch
	c.Start(New("next", "", time.Now()))
	st, _ = c.Status()
	assert.Zero(t, st.FramesProcessed)
	assert.Zero(t, st.FrameNumber)
}

func TestContext_ThreadSafe(t *testing.T) {
	c := NewContext()
	c.Start(New("gate", "", time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Observe(&core.FrameResult{FrameNumber: int64(n)})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = c.Status()
			_ = c.LogAttrs()
		}()
	}
	wg.Wait()

	st, ok := c.Status()
	require.True(t, ok)
	assert.Equal(t, 50, st.FramesProcessed)
}
