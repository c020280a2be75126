package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	size = core.FrameSize{Width: 1280, Height: 720}
	t0   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func testLayout() core.Layout {
	rect := func(x0, y0, x1, y1 float64) []core.Point {
		return []core.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
	}
	return core.Layout{
		Zones: []core.Zone{
			{ID: "zone_0", Name: "Zone A (Top-Left)", Polygon: rect(0, 0, 0.5, 0.5), Area: 50},
			{ID: "zone_1", Name: "Zone B (Top-Right)", Polygon: rect(0.5, 0, 1, 0.5), Area: 50},
			{ID: "zone_2", Name: "Zone C (Bottom-Left)", Polygon: rect(0, 0.5, 0.5, 1), Area: 50},
			{ID: "zone_3", Name: "Zone D (Bottom-Right)", Polygon: rect(0.5, 0.5, 1, 1), Area: 50},
		},
		Exits: []core.ExitPoint{
			{ID: "exit_0", Name: "Main Gate", Point: core.Point{X: 0.5, Y: 0}, Capacity: 20, Status: core.ExitOpen},
			{ID: "exit_1", Name: "South Exit", Point: core.Point{X: 0.5, Y: 1}, Capacity: 20, Status: core.ExitOpen},
		},
	}
}

// crowd places n confident detections inside the top-left quadrant.
func crowd(n int) []core.Detection {
	dets := make([]core.Detection, n)
	for i := range dets {
		dets[i] = core.Detection{
			Point:      core.Point{X: float64(10 + i%60*10), Y: float64(10 + i/60*10)},
			Confidence: 0.9,
		}
	}
	return dets
}

func frameAt(n int64, sec float64, dets []core.Detection) core.Frame {
	return core.Frame{
		Number:     n,
		Timestamp:  t0.Add(time.Duration(sec * float64(time.Second))),
		Size:       size,
		Detections: dets,
	}
}

func TestProcess_EndToEndSafe(t *testing.T) {
	p := New(testLayout(), DefaultConfig())

	res := p.Process(frameAt(0, 0, crowd(30)))

	require.Len(t, res.Zones, 4)
	z := res.Zones[0]
	assert.Equal(t, 30, z.Count)
	assert.InDelta(t, 0.6, z.Density, 1e-12)
	assert.Equal(t, core.StatusSafe, z.Status)
	assert.Nil(t, z.Timer)
	assert.Equal(t, core.ActionMonitor, res.Instructions[0].Action)
	assert.Equal(t, core.StatusSafe, res.GlobalAlert)
	assert.Equal(t, "SAFE", res.AlarmLevel)
	assert.Equal(t, 30, res.TotalPeople)
	assert.Empty(t, res.Timers())
	assert.Equal(t, map[string]int{"zone_0": 30, "zone_1": 0, "zone_2": 0, "zone_3": 0}, res.Counts())
}

func TestProcess_EmergencyTimerFollowsTimestamps(t *testing.T) {
	p := New(testLayout(), DefaultConfig())

	res := p.Process(frameAt(0, 0, crowd(260)))
	require.Equal(t, core.StatusEmergency, res.Zones[0].Status)
	require.NotNil(t, res.Zones[0].Timer)
	assert.Equal(t, core.ActionEvacuate, res.Instructions[0].Action)
	assert.Equal(t, "exit_0", res.Instructions[0].ExitID)
	assert.True(t, res.Instructions[0].CapacityExceeded)
	assert.Equal(t, core.StatusEmergency, res.GlobalAlert)

	res = p.Process(frameAt(1, 45, crowd(260)))
	assert.Equal(t, core.SeverityCritical, res.Zones[0].Timer.Severity)
	assert.Equal(t, "00:45", res.Zones[0].Timer.Formatted)
	assert.Equal(t, []string{"zone_0"}, p.ActiveTimers())

	res = p.Process(frameAt(2, 46, crowd(30)))
	assert.Nil(t, res.Zones[0].Timer)
	assert.Empty(t, p.ActiveTimers())
	assert.Equal(t, -1, res.Zones[0].Trend)
}

func TestProcess_ConfidenceFilter(t *testing.T) {
	p := New(testLayout(), DefaultConfig())
	dets := crowd(10)
	for i := 0; i < 4; i++ {
		dets[i].Confidence = 0.2
	}

	res := p.Process(frameAt(0, 0, dets))

	assert.Equal(t, 6, res.Zones[0].Count)
	assert.Len(t, res.Detections, 6)
}

func TestProcess_UnmatchedDetectionsNotCounted(t *testing.T) {
	layout := testLayout()
	layout.Zones = layout.Zones[:1]
	p := New(layout, DefaultConfig())

	dets := []core.Detection{
		{Point: core.Point{X: 10, Y: 10}, Confidence: 1},
		{Point: core.Point{X: 1000, Y: 600}, Confidence: 1},
	}
	res := p.Process(frameAt(0, 0, dets))

	assert.Equal(t, 1, res.TotalPeople)
	assert.Empty(t, res.Detections[1].ZoneID)
}

func TestSetExitStatus(t *testing.T) {
	p := New(testLayout(), DefaultConfig())

	require.NoError(t, p.SetExitStatus("exit_0", core.ExitBlocked))
	res := p.Process(frameAt(0, 0, crowd(260)))
	assert.Equal(t, "exit_1", res.Instructions[0].ExitID)

	require.NoError(t, p.SetExitStatus("exit_1", core.ExitBlocked))
	res = p.Process(frameAt(1, 1, crowd(260)))
	assert.Equal(t, core.ActionAwaitRescue, res.Instructions[0].Action)
	assert.Equal(t, core.ActionMonitor, res.Instructions[1].Action)

	err := p.SetExitStatus("nope", core.ExitOpen)
	assert.True(t, errors.Is(err, ErrUnknownExit))
}

func TestSetExitStatus_DoesNotMutateCallerLayout(t *testing.T) {
	layout := testLayout()
	p := New(layout, DefaultConfig())

	require.NoError(t, p.SetExitStatus("exit_0", core.ExitBlocked))

	assert.Equal(t, core.ExitOpen, layout.Exits[0].Status)
	assert.Equal(t, core.ExitBlocked, p.Layout().Exits[0].Status)
}

func TestShouldProcess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 3
	p := New(testLayout(), cfg)

	var processed []int64
	for n := int64(0); n < 10; n++ {
		if p.ShouldProcess(n) {
			processed = append(processed, n)
		}
	}
	assert.Equal(t, []int64{0, 3, 6, 9}, processed)

	assert.True(t, New(testLayout(), Config{}).ShouldProcess(7))
}

func TestProcess_TrendAndReset(t *testing.T) {
	p := New(testLayout(), DefaultConfig())

	res := p.Process(frameAt(0, 0, crowd(5)))
	assert.Equal(t, 0, res.Zones[0].Trend)
	res = p.Process(frameAt(1, 1, crowd(8)))
	assert.Equal(t, 1, res.Zones[0].Trend)
	assert.Equal(t, 0, res.Zones[1].Trend)

	p.Process(frameAt(2, 2, crowd(260)))
	p.Reset()
	assert.Empty(t, p.ActiveTimers())
	res = p.Process(frameAt(3, 3, crowd(1)))
	assert.Equal(t, 0, res.Zones[0].Trend)
}

func TestProcess_CriticalAlarmWithTwoEmergencies(t *testing.T) {
	p := New(testLayout(), DefaultConfig())
	dets := crowd(260)
	for i := 0; i < 260; i++ {
		// mirror into the top-right quadrant
		dets = append(dets, core.Detection{Point: core.Point{X: 640 + dets[i].Point.X, Y: dets[i].Point.Y}, Confidence: 0.9})
	}

	res := p.Process(frameAt(0, 0, dets))

	assert.Equal(t, core.StatusEmergency, res.Zones[0].Status)
	assert.Equal(t, core.StatusEmergency, res.Zones[1].Status)
	assert.Equal(t, "CRITICAL", res.AlarmLevel)
}
