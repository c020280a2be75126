package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *core.FrameResult {
	return &core.FrameResult{
		FrameNumber: 7,
		Timestamp:   time.Unix(1714564800, 0),
		Zones: []core.ZoneSnapshot{
			{ZoneID: "zone_0", Count: 12, Density: 0.24, Status: core.StatusSafe},
			{ZoneID: "zone_1", Count: 260, Density: 5.2, Status: core.StatusEmergency,
				Timer: &core.TimerData{Active: true, Elapsed: 31 * time.Second}},
		},
		GlobalAlert: core.StatusEmergency,
		AlarmLevel:  "EMERGENCY",
		TotalPeople: 272,
	}
}

func fieldMap(p *influxdb2_write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagMap(p *influxdb2_write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func TestFramePoints(t *testing.T) {
	points := FramePoints("s1", testResult())
	require.Len(t, points, 3)

	safe := points[0]
	assert.Equal(t, MeasurementZone, safe.Name())
	assert.Equal(t, map[string]string{"session": "s1", "zone": "zone_0", "status": "SAFE"}, tagMap(safe))
	assert.NotContains(t, fieldMap(safe), "emergency_seconds")
	assert.True(t, time.Unix(1714564800, 0).Equal(safe.Time()))

	emergency := fieldMap(points[1])
	assert.Equal(t, 31.0, emergency["emergency_seconds"])
	assert.Equal(t, 5.2, emergency["density"])

	summary := points[2]
	assert.Equal(t, MeasurementFrame, summary.Name())
	assert.Equal(t, "EMERGENCY", tagMap(summary)["global_status"])
	assert.Equal(t, "EMERGENCY", fieldMap(summary)["alarm_level"])
}

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "influx.gz"))
	assert.ErrorIs(t, m.Connect(), ErrDisabled)
	assert.False(t, m.IsValid)
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(context.Background(), "crowd_density", influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

func TestWritePoint_UnknownBucket(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	m.IsValid = true
	err := m.WritePoint(context.Background(), "missing", influxdb2_write.NewPointWithMeasurement("x"))
	assert.ErrorContains(t, err, "not registered")
}

func TestConnect_UnreachableWritesBackup(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	viper.Set("influx.bucket", "crowd_density")

	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), backup)
	require.NoError(t, m.Connect())
	assert.False(t, m.IsValid)

	require.NoError(t, m.WriteFrame(context.Background(), "s1", testResult()))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "zone_density,"), lines[0])
	assert.Contains(t, lines[1], "zone=zone_1")
	assert.True(t, strings.HasPrefix(lines[2], "frame_summary,"), lines[2])
}
