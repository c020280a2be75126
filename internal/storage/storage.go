// internal/storage/storage.go
package storage

import "github.com/crowdeval/crowdeval/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session, layout *core.Layout) error
	EndSession() error

	// Per-frame recording
	RecordFrame(result *core.FrameResult) error
}

// Summarizer is an optional interface for backends that can report
// statistics over every stored session, newest first.
type Summarizer interface {
	Summaries() ([]core.SessionSummary, error)
}

// Exporter is an optional interface for backends that write a session file
// when the session ends.
type Exporter interface {
	ExportedFilePath() string
}
