package density

import (
	"testing"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensity(t *testing.T) {
	tests := []struct {
		name  string
		count int
		area  float64
		want  float64
	}{
		{"normal", 30, 50, 0.6},
		{"empty zone", 0, 50, 0},
		{"zero area", 10, 0, 0},
		{"negative area", 10, -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Density(tt.count, tt.area), 1e-12)
		})
	}
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		density float64
		want    core.Status
	}{
		{0, core.StatusSafe},
		{1.999, core.StatusSafe},
		{2.0, core.StatusModerate},
		{3.4999, core.StatusModerate},
		{3.5, core.StatusWarning},
		{4.999, core.StatusWarning},
		{5.0, core.StatusEmergency},
		{12, core.StatusEmergency},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.density), "density %g", tt.density)
	}
}

func TestClassify_MonotonicInCount(t *testing.T) {
	const area = 50.0
	prev := core.StatusSafe
	for count := 0; count <= 400; count++ {
		s := Classify(Density(count, area))
		require.GreaterOrEqual(t, int(s), int(prev), "count %d", count)
		prev = s
	}
	assert.Equal(t, core.StatusEmergency, prev)
}

func TestClassify_ZeroAreaIsSafe(t *testing.T) {
	assert.Equal(t, core.StatusSafe, Classify(Density(1000, 0)))
}

func TestThresholds_Custom(t *testing.T) {
	th := Thresholds{Moderate: 1, Warning: 2, Emergency: 3}
	require.NoError(t, th.Validate())
	assert.Equal(t, core.StatusWarning, th.Classify(2))
	assert.Equal(t, core.StatusEmergency, th.Classify(3))
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Moderate: 0, Warning: 1, Emergency: 2}.Validate())
	assert.Error(t, Thresholds{Moderate: 2, Warning: 2, Emergency: 5}.Validate())
	assert.Error(t, Thresholds{Moderate: 2, Warning: 6, Emergency: 5}.Validate())
}
