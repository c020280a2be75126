package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crowdeval/crowdeval/internal/alert"
	"github.com/crowdeval/crowdeval/internal/api"
	"github.com/crowdeval/crowdeval/internal/dispatcher"
	"github.com/crowdeval/crowdeval/internal/metrics"
	"github.com/crowdeval/crowdeval/internal/parser"
	"github.com/crowdeval/crowdeval/internal/pipeline"
	"github.com/crowdeval/crowdeval/internal/session"
	"github.com/crowdeval/crowdeval/internal/storage"
	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/crowdeval/crowdeval/pkg/streaming"
)

// CommandRecord is the internal command that persists a processed frame.
const CommandRecord = "record"

// recordBuffer is the queue size of the record command.
const recordBuffer = 1000

// FrameWriter receives every processed frame, tagged with its session.
type FrameWriter interface {
	WriteFrame(ctx context.Context, sessionID string, result *core.FrameResult) error
}

// Uploader receives the export file of every ended session.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta api.UploadMetadata) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Parser    *parser.Parser
	Processor *pipeline.Processor
	Escalator *alert.Escalator
	Metrics   *metrics.Metrics
	Session   *session.Context
	Backend   storage.Backend
	// Influx and Uploader are optional.
	Influx    FrameWriter
	Uploader  Uploader
	UploadTag string
}

// record is the value carried by a record event.
type record struct {
	sessionID string
	result    *core.FrameResult
}

// Service provides the command handlers of the ingest stream
type Service struct {
	deps       Dependencies
	dispatcher *dispatcher.Dispatcher
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger, nil)
	}
	if deps.Escalator == nil {
		deps.Escalator = alert.NewEscalator()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	return &Service{deps: deps}
}

// Register installs the stream commands on d. Frames and exit toggles are
// handled synchronously so the processor sees them in input order;
// persistence runs behind a blocking buffer.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	s.dispatcher = d

	d.Register(streaming.TypeSessionStart, s.HandleSessionStart, dispatcher.Logged())
	d.Register(streaming.TypeSessionEnd, s.HandleSessionEnd, dispatcher.Logged())
	d.Register(streaming.TypeFrame, s.HandleFrame)
	d.Register(streaming.TypeExitStatus, s.HandleExitStatus, dispatcher.Logged())
	d.Register(CommandRecord, s.handleRecord, dispatcher.Buffered(recordBuffer), dispatcher.Blocking())
}

// Session returns the session context shared with the monitor.
func (s *Service) Session() *session.Context {
	return s.deps.Session
}

// HandleSessionStart ends any running session and opens a new one. It
// returns the new session id.
func (s *Service) HandleSessionStart(e dispatcher.Event) (any, error) {
	p, err := s.deps.Parser.ParseSessionStart(e.Payload)
	if err != nil {
		return nil, err
	}

	if s.deps.Session.Active() {
		s.deps.Logger.Info("Session start received while running, ending current session")
		if err := s.endSession(eventTime(e)); err != nil {
			s.deps.Logger.Error("Failed to end previous session", "error", err)
		}
	}

	sess, err := s.startSession(p.Name, p.Source, eventTime(e))
	if err != nil {
		return nil, err
	}
	return sess.ID, nil
}

// HandleSessionEnd closes the running session after its queued frames are
// stored.
func (s *Service) HandleSessionEnd(e dispatcher.Event) (any, error) {
	if !s.deps.Session.Active() {
		return nil, core.ErrNoSession
	}
	if err := s.endSession(eventTime(e)); err != nil {
		return nil, err
	}
	return "ok", nil
}

// HandleFrame evaluates one frame. It returns the frame result, or nil for
// frames off the processing stride.
func (s *Service) HandleFrame(e dispatcher.Event) (any, error) {
	frame, err := s.deps.Parser.ParseFrame(e.Payload)
	if err != nil {
		s.countRejected()
		return nil, err
	}

	if !s.deps.Processor.ShouldProcess(frame.Number) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.FramesSkipped.Add(1)
		}
		return nil, nil
	}

	if !s.deps.Session.Active() {
		s.deps.Logger.Info("Frame outside a session, starting one", "frame", frame.Number)
		if _, err := s.startSession("", "", eventTime(e)); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	result := s.deps.Processor.Process(frame)
	took := time.Since(start)

	statuses := make([]core.Status, len(result.Zones))
	for i, z := range result.Zones {
		statuses[i] = z.Status
	}
	s.deps.Escalator.Update(statuses)

	if s.deps.Metrics != nil {
		s.deps.Metrics.Observe(result, took)
	}
	s.deps.Session.Observe(result)

	rec := record{sessionID: s.deps.Session.Current().ID, result: result}
	if s.dispatcher != nil {
		if _, err := s.dispatcher.Dispatch(dispatcher.Event{Command: CommandRecord, Value: rec, Timestamp: e.Timestamp}); err != nil {
			return result, fmt.Errorf("failed to queue frame %d: %w", frame.Number, err)
		}
	} else if _, err := s.handleRecord(dispatcher.Event{Value: rec}); err != nil {
		return result, err
	}

	return result, nil
}

// HandleExitStatus toggles an exit. The change applies from the next frame.
func (s *Service) HandleExitStatus(e dispatcher.Event) (any, error) {
	exitID, status, err := s.deps.Parser.ParseExitStatus(e.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Processor.SetExitStatus(exitID, status); err != nil {
		return nil, err
	}
	s.deps.Logger.Info("Exit status changed", "exit", exitID, "status", status)
	return "ok", nil
}

func (s *Service) handleRecord(e dispatcher.Event) (any, error) {
	rec, ok := e.Value.(record)
	if !ok {
		return nil, fmt.Errorf("unexpected record value %T", e.Value)
	}

	if err := s.deps.Backend.RecordFrame(rec.result); err != nil {
		return nil, fmt.Errorf("failed to record frame %d: %w", rec.result.FrameNumber, err)
	}
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WriteFrame(context.Background(), rec.sessionID, rec.result); err != nil {
			return nil, fmt.Errorf("failed to write frame %d to influx: %w", rec.result.FrameNumber, err)
		}
	}
	return nil, nil
}

func (s *Service) startSession(name, source string, at time.Time) (*core.Session, error) {
	s.resetState()

	sess := session.New(name, source, at)
	layout := s.deps.Processor.Layout()
	if err := s.deps.Backend.StartSession(sess, &layout); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	s.deps.Session.Start(sess)
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionsStarted.Add(1)
	}

	s.deps.Logger.Info("Session started", "session", sess.ID, "name", sess.Name, "source", sess.Source)
	return sess, nil
}

func (s *Service) endSession(at time.Time) error {
	if s.dispatcher != nil {
		s.dispatcher.Drain(CommandRecord)
	}

	sess := s.deps.Session.End(at)
	s.resetState()
	if sess == nil {
		return core.ErrNoSession
	}

	if err := s.deps.Backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session %s: %w", sess.ID, err)
	}

	duration := sess.EndTime.Sub(sess.StartTime)
	exp, ok := s.deps.Backend.(storage.Exporter)
	if !ok || exp.ExportedFilePath() == "" {
		s.deps.Logger.Info("Session ended", "session", sess.ID, "duration", duration)
		return nil
	}

	path := exp.ExportedFilePath()
	s.deps.Logger.Info("Session ended", "session", sess.ID, "duration", duration, "file", path)
	if s.deps.Uploader != nil {
		s.upload(sess, path)
	}
	return nil
}

// upload failures are logged; the export file stays on disk either way.
func (s *Service) upload(sess *core.Session, path string) {
	err := s.deps.Uploader.Upload(context.Background(), path, api.UploadMetadata{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		Source:      sess.Source,
		Duration:    sess.EndTime.Sub(sess.StartTime).Seconds(),
		Tag:         s.deps.UploadTag,
	})
	if err != nil {
		s.deps.Logger.Error("Failed to upload session file", "file", path, "error", err)
		return
	}
	s.deps.Logger.Info("Uploaded session file", "file", path)
}

// resetState clears everything derived from the previous session's frames.
func (s *Service) resetState() {
	s.deps.Processor.Reset()
	s.deps.Escalator.Reset()
	if s.deps.Metrics != nil {
		s.deps.Metrics.ResetZones()
	}
}

// eventTime is the wall-clock receive time of e. Session bookkeeping uses it
// while timers and frame records use the frame timestamp.
func eventTime(e dispatcher.Event) time.Time {
	if e.Timestamp.IsZero() {
		return time.Now()
	}
	return e.Timestamp
}

func (s *Service) countRejected() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.FramesRejected.Add(1)
	}
}
