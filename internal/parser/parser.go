package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/crowdeval/crowdeval/pkg/streaming"
)

var (
	// ErrInvalidEnvelope is returned for lines that are not a typed message.
	ErrInvalidEnvelope = errors.New("invalid envelope")
	// ErrInvalidFrame is returned for frame payloads that cannot be processed.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Parser converts ingest messages into core types.
// NO processing, NO storage: callers decide what to do with the result.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewParser creates a parser. Frames without a timestamp are stamped with now.
func NewParser(logger *slog.Logger, now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{logger: logger, now: now}
}

// ParseEnvelope decodes one input line.
func (p *Parser) ParseEnvelope(line []byte) (streaming.Envelope, error) {
	var env streaming.Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	return env, nil
}

// ParseFrame converts a frame payload. The representative point of a
// bounding box is its centre.
func (p *Parser) ParseFrame(payload []byte) (core.Frame, error) {
	var fp streaming.FramePayload
	if err := json.Unmarshal(payload, &fp); err != nil {
		return core.Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if fp.Width <= 0 || fp.Height <= 0 {
		return core.Frame{}, fmt.Errorf("%w: frame %d has size %dx%d", ErrInvalidFrame, fp.FrameNumber, fp.Width, fp.Height)
	}

	frame := core.Frame{
		Number:     fp.FrameNumber,
		Timestamp:  p.timestamp(fp.Timestamp),
		Size:       core.FrameSize{Width: fp.Width, Height: fp.Height},
		Detections: make([]core.Detection, 0, len(fp.Detections)),
	}

	for i, d := range fp.Detections {
		var pt core.Point
		switch {
		case d.BBox != nil:
			pt = core.Point{X: d.BBox.X + d.BBox.W/2, Y: d.BBox.Y + d.BBox.H/2}
		case d.Center != nil:
			pt = core.Point{X: d.Center[0], Y: d.Center[1]}
		default:
			p.logger.Debug("Skipping detection without position", "frame", fp.FrameNumber, "index", i)
			continue
		}

		conf := 1.0
		if d.Confidence != nil {
			conf = *d.Confidence
		}
		frame.Detections = append(frame.Detections, core.Detection{
			Point:      pt,
			Confidence: conf,
			ClassName:  d.ClassName,
		})
	}

	return frame, nil
}

func (p *Parser) timestamp(unix float64) time.Time {
	if unix <= 0 {
		return p.now().UTC()
	}
	sec, frac := math.Modf(unix)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// ParseExitStatus converts an exit toggle payload.
func (p *Parser) ParseExitStatus(payload []byte) (string, core.ExitStatus, error) {
	var ep streaming.ExitStatusPayload
	if err := json.Unmarshal(payload, &ep); err != nil {
		return "", "", fmt.Errorf("error unmarshalling exit status: %w", err)
	}
	if ep.ExitID == "" {
		return "", "", fmt.Errorf("exit status missing exit_id")
	}
	status, err := core.ParseExitStatus(ep.Status)
	if err != nil {
		return "", "", err
	}
	return ep.ExitID, status, nil
}

// ParseSessionStart converts a session start payload. An empty payload is
// allowed and yields an unnamed session.
func (p *Parser) ParseSessionStart(payload []byte) (streaming.SessionStartPayload, error) {
	var sp streaming.SessionStartPayload
	if len(payload) == 0 || string(payload) == "null" {
		return sp, nil
	}
	if err := json.Unmarshal(payload, &sp); err != nil {
		return sp, fmt.Errorf("error unmarshalling session start: %w", err)
	}
	return sp, nil
}
