package convert

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/internal/model"
	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() core.Layout {
	return core.Layout{
		Zones: []core.Zone{
			{ID: "zone_0", Name: "Left", Polygon: []core.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 0.5, Y: 1}, {X: 0, Y: 1}}, Area: 50},
			{ID: "zone_1", Name: "Right", Polygon: []core.Point{{X: 0.5, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0.5, Y: 1}}, Area: 40},
		},
		Exits: []core.ExitPoint{
			{ID: "exit_0", Name: "Gate", Point: core.Point{X: 0.5, Y: 0}, Capacity: 20, Status: core.ExitOpen},
			{ID: "exit_1", Name: "Back", Point: core.Point{X: 0.5, Y: 1}, Capacity: 10, Status: core.ExitBlocked},
		},
	}
}

func TestCoreToSession(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := core.Session{ID: "abc", Name: "Concert", Source: "cam1.mp4", StartTime: start}

	m, err := CoreToSession(s, testLayout())
	require.NoError(t, err)

	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, "Concert", m.Name)
	assert.Equal(t, "cam1.mp4", m.Source)
	assert.Equal(t, start, m.StartTime)
	assert.False(t, m.EndTime.Valid)

	require.Len(t, m.Zones, 2)
	assert.Equal(t, "zone_1", m.Zones[1].ZoneID)
	assert.Equal(t, 1, m.Zones[1].Position)
	assert.Equal(t, "abc", m.Zones[1].SessionID)
	assert.Equal(t, 40.0, m.Zones[1].Area)
	assert.True(t, strings.HasPrefix(m.Zones[0].Polygon, "POLYGON"), m.Zones[0].Polygon)

	require.Len(t, m.Exits, 2)
	assert.Equal(t, "BLOCKED", m.Exits[1].Status)
	assert.Equal(t, 0.5, m.Exits[1].X)
	assert.Equal(t, 1.0, m.Exits[1].Y)

	var layout core.Layout
	require.NoError(t, json.Unmarshal(m.Layout, &layout))
	assert.Equal(t, testLayout(), layout)
}

func TestCoreToSession_EndTime(t *testing.T) {
	end := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	m, err := CoreToSession(core.Session{ID: "x", EndTime: end}, core.Layout{})
	require.NoError(t, err)
	assert.True(t, m.EndTime.Valid)
	assert.Equal(t, end, m.EndTime.Time)
	assert.Empty(t, m.Zones)
}

func testResult() *core.FrameResult {
	return &core.FrameResult{
		FrameNumber: 42,
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 42, 0, time.UTC),
		Zones: []core.ZoneSnapshot{
			{ZoneID: "zone_0", Count: 3, Density: 0.06, Status: core.StatusSafe},
			{ZoneID: "zone_1", Count: 250, Density: 6.25, Status: core.StatusEmergency,
				Timer: &core.TimerData{Active: true, Elapsed: 45 * time.Second, Severity: core.SeverityCritical}},
		},
		GlobalAlert: core.StatusEmergency,
		AlarmLevel:  "EMERGENCY",
		TotalPeople: 253,
	}
}

func TestCoreToFrameRecord(t *testing.T) {
	rec, err := CoreToFrameRecord("abc", testResult())
	require.NoError(t, err)

	assert.Equal(t, "abc", rec.SessionID)
	assert.Equal(t, int64(42), rec.FrameNumber)
	assert.Equal(t, 253, rec.TotalPeople)
	assert.Equal(t, "EMERGENCY", rec.GlobalStatus)
	assert.Equal(t, "EMERGENCY", rec.AlarmLevel)
	assert.JSONEq(t, `{"zone_0":3,"zone_1":250}`, string(rec.Counts))
	assert.JSONEq(t, `{"zone_0":0.06,"zone_1":6.25}`, string(rec.Densities))
	assert.JSONEq(t, `{"zone_0":"SAFE","zone_1":"EMERGENCY"}`, string(rec.Statuses))
}

func TestCoreToFrameRecord_NoZones(t *testing.T) {
	rec, err := CoreToFrameRecord("abc", &core.FrameResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(rec.Counts))
	assert.Equal(t, "SAFE", rec.GlobalStatus)
}

func TestCoreToZoneSamples(t *testing.T) {
	samples := CoreToZoneSamples("abc", testResult())
	require.Len(t, samples, 2)

	assert.Equal(t, model.ZoneSample{
		Time:        testResult().Timestamp,
		SessionID:   "abc",
		FrameNumber: 42,
		ZoneID:      "zone_0",
		Count:       3,
		Density:     0.06,
		Status:      "SAFE",
	}, samples[0])
	assert.Equal(t, 45.0, samples[1].EmergencySeconds)
	assert.Equal(t, "EMERGENCY", samples[1].Status)
}

func TestSessionToSummary(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := SessionToSummary(model.Session{ID: "abc", Name: "Concert", StartTime: start})
	assert.Equal(t, core.SessionSummary{SessionID: "abc", Name: "Concert", CreatedAt: start}, s)
}
