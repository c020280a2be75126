package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"SAFE", StatusSafe, false},
		{"moderate", StatusModerate, false},
		{"Warning", StatusWarning, false},
		{"EMERGENCY", StatusEmergency, false},
		{"CRITICAL", StatusSafe, true},
		{"", StatusSafe, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_OrderAndText(t *testing.T) {
	assert.Less(t, StatusSafe, StatusModerate)
	assert.Less(t, StatusModerate, StatusWarning)
	assert.Less(t, StatusWarning, StatusEmergency)
	assert.Equal(t, "Status(9)", Status(9).String())

	b, err := json.Marshal(map[string]Status{"zone_0": StatusEmergency})
	require.NoError(t, err)
	assert.JSONEq(t, `{"zone_0":"EMERGENCY"}`, string(b))

	var back map[string]Status
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, StatusEmergency, back["zone_0"])
}

func TestIsIncident(t *testing.T) {
	assert.False(t, IsIncident(StatusSafe))
	assert.False(t, IsIncident(StatusModerate))
	assert.True(t, IsIncident(StatusWarning))
	assert.True(t, IsIncident(StatusEmergency))
}

func TestParseExitStatus(t *testing.T) {
	s, err := ParseExitStatus(" blocked ")
	require.NoError(t, err)
	assert.Equal(t, ExitBlocked, s)

	_, err = ParseExitStatus("closed")
	assert.Error(t, err)
}

func TestFrameSize_Denormalize(t *testing.T) {
	size := FrameSize{Width: 1280, Height: 720}
	assert.Equal(t, Point{X: 640, Y: 720}, size.Denormalize(Point{X: 0.5, Y: 1}))
	assert.True(t, size.Valid())
	assert.False(t, FrameSize{Width: 0, Height: 720}.Valid())
}

func TestLayout_CloneIsDeep(t *testing.T) {
	orig := Layout{
		Zones: []Zone{{ID: "zone_0", Polygon: []Point{{0, 0}, {1, 0}, {1, 1}}}},
		Exits: []ExitPoint{{ID: "exit_0", Status: ExitOpen}},
	}
	c := orig.Clone()
	c.Zones[0].Polygon[0] = Point{X: 9, Y: 9}
	c.Exits[0].Status = ExitBlocked

	assert.Equal(t, Point{0, 0}, orig.Zones[0].Polygon[0])
	assert.True(t, orig.Exits[0].Open())
	assert.False(t, c.Exits[0].Open())
}
