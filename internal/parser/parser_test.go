package parser

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/crowdeval/crowdeval/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(slog.Default(), func() time.Time { return fixedNow })
}

func TestParseEnvelope(t *testing.T) {
	p := newTestParser()

	env, err := p.ParseEnvelope([]byte(`{"type":"frame","payload":{"frame_number":1}}`))
	require.NoError(t, err)
	assert.Equal(t, streaming.TypeFrame, env.Type)
	assert.JSONEq(t, `{"frame_number":1}`, string(env.Payload))

	_, err = p.ParseEnvelope([]byte(`{"payload":{}}`))
	assert.True(t, errors.Is(err, ErrInvalidEnvelope))

	_, err = p.ParseEnvelope([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidEnvelope))
}

func TestParseFrame(t *testing.T) {
	p := newTestParser()
	payload := `{
		"frame_number": 42,
		"timestamp": 1714564800.5,
		"width": 1280,
		"height": 720,
		"detections": [
			{"bbox": {"x": 100, "y": 200, "w": 40, "h": 80}, "confidence": 0.8, "class_name": "person"},
			{"center": [640, 360]},
			{"confidence": 0.9}
		]
	}`

	frame, err := p.ParseFrame([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, int64(42), frame.Number)
	assert.Equal(t, time.Unix(1714564800, 500000000).UTC(), frame.Timestamp)
	assert.Equal(t, core.FrameSize{Width: 1280, Height: 720}, frame.Size)
	require.Len(t, frame.Detections, 2)
	assert.Equal(t, core.Point{X: 120, Y: 240}, frame.Detections[0].Point)
	assert.Equal(t, 0.8, frame.Detections[0].Confidence)
	assert.Equal(t, "person", frame.Detections[0].ClassName)
	assert.Equal(t, core.Point{X: 640, Y: 360}, frame.Detections[1].Point)
	assert.Equal(t, 1.0, frame.Detections[1].Confidence)
}

func TestParseFrame_DefaultsTimestamp(t *testing.T) {
	frame, err := newTestParser().ParseFrame([]byte(`{"width": 10, "height": 10}`))
	require.NoError(t, err)
	assert.Equal(t, fixedNow, frame.Timestamp)
	assert.Empty(t, frame.Detections)
}

func TestParseFrame_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"bad json", `{`},
		{"zero width", `{"width": 0, "height": 720}`},
		{"negative height", `{"width": 1280, "height": -1}`},
	}
	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseFrame([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFrame))
		})
	}
}

func TestParseExitStatus(t *testing.T) {
	p := newTestParser()

	id, status, err := p.ParseExitStatus([]byte(`{"exit_id":"exit_0","status":"blocked"}`))
	require.NoError(t, err)
	assert.Equal(t, "exit_0", id)
	assert.Equal(t, core.ExitBlocked, status)

	_, _, err = p.ParseExitStatus([]byte(`{"exit_id":"exit_0","status":"CROWDED"}`))
	assert.Error(t, err)

	_, _, err = p.ParseExitStatus([]byte(`{"status":"OPEN"}`))
	assert.Error(t, err)
}

func TestParseSessionStart(t *testing.T) {
	p := newTestParser()

	sp, err := p.ParseSessionStart([]byte(`{"name":"Gate cam","source":"rtsp://cam1"}`))
	require.NoError(t, err)
	assert.Equal(t, "Gate cam", sp.Name)
	assert.Equal(t, "rtsp://cam1", sp.Source)

	sp, err = p.ParseSessionStart(nil)
	require.NoError(t, err)
	assert.Empty(t, sp.Name)
}
