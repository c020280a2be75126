package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *core.FrameResult {
	return &core.FrameResult{
		FrameNumber: 7,
		Zones: []core.ZoneSnapshot{
			{ZoneID: "zone_0", Count: 260, Density: 5.2, Status: core.StatusEmergency,
				Timer: &core.TimerData{Active: true, Elapsed: 45 * time.Second}},
			{ZoneID: "zone_1", Count: 30, Density: 0.6, Status: core.StatusSafe},
		},
		GlobalAlert: core.StatusEmergency,
		TotalPeople: 290,
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.Observe(sampleResult(), 2*time.Millisecond)

	assert.Equal(t, uint64(1), m.FramesProcessed.Load())
	assert.Equal(t, 260.0, testutil.ToFloat64(m.zoneCount.WithLabelValues("zone_0")))
	assert.Equal(t, 5.2, testutil.ToFloat64(m.zoneDensity.WithLabelValues("zone_0")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.zoneStatus.WithLabelValues("zone_0")))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.zoneTimer.WithLabelValues("zone_0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.zoneTimer.WithLabelValues("zone_1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.globalAlert))
	assert.Equal(t, 290.0, testutil.ToFloat64(m.people))
}

func TestResetZones(t *testing.T) {
	m := New()
	m.Observe(sampleResult(), time.Millisecond)
	m.ResetZones()

	assert.Equal(t, 0, testutil.CollectAndCount(m.zoneCount))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.globalAlert))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.FramesSkipped.Add(4)
	m.Observe(sampleResult(), time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `crowdeval_zone_people{zone="zone_0"} 260`)
	assert.Contains(t, string(body), "crowdeval_frames_skipped_total 4")
	assert.Contains(t, string(body), "crowdeval_frame_processing_seconds_count 1")
}
