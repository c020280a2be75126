package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/crowdeval/crowdeval/internal/dispatcher"
	"github.com/crowdeval/crowdeval/internal/handlers"
	"github.com/crowdeval/crowdeval/internal/parser"
)

// maxLineSize bounds one JSON line; dense frames carry a few hundred detections.
const maxLineSize = 16 << 20

// ingestStats counts what happened to the input lines.
type ingestStats struct {
	Lines      int
	Dispatched int
	Rejected   int
	Failed     int
}

// ingest dispatches one message per input line, in order, until EOF or ctx
// is cancelled. Bad lines are logged and skipped.
func ingest(ctx context.Context, r io.Reader, p *parser.Parser, d *dispatcher.Dispatcher, logger *slog.Logger) (ingestStats, error) {
	var stats ingestStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		env, err := p.ParseEnvelope(line)
		if err != nil {
			stats.Rejected++
			logger.Warn("Skipping input line", "line", stats.Lines, "error", err)
			continue
		}
		// internal commands are not accepted from the stream
		if env.Type == handlers.CommandRecord || !d.HasHandler(env.Type) {
			stats.Rejected++
			logger.Warn("Skipping unknown message type", "line", stats.Lines, "type", env.Type)
			continue
		}

		stats.Dispatched++
		if _, err := d.Dispatch(dispatcher.Event{Command: env.Type, Payload: env.Payload}); err != nil {
			stats.Failed++
			logger.Warn("Message failed", "line", stats.Lines, "type", env.Type, "error", err)
		}
	}
	return stats, scanner.Err()
}
