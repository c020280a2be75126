// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const filePrefix = "session_"

// SessionExport is the root JSON structure of a session file.
type SessionExport struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	Metadata    Metadata      `json:"metadata"`
	TotalFrames int           `json:"total_frames"`
	Data        []FrameRecord `json:"data"`
}

// Metadata describes the session source and the layout it ran with.
type Metadata struct {
	Name    string      `json:"name,omitempty"`
	Source  string      `json:"video_name,omitempty"`
	EndedAt time.Time   `json:"ended_at"`
	Layout  core.Layout `json:"layout"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	filename := fmt.Sprintf("%s%s_%s.json", filePrefix, b.session.StartTime.Format("20060102_150405"), shortID(b.session.ID))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.log.Info("Session exported", "path", outputPath, "frames", export.TotalFrames)
	return nil
}

func (b *Backend) buildExport() SessionExport {
	data := b.frames
	if data == nil {
		data = []FrameRecord{}
	}
	return SessionExport{
		ID:        b.session.ID,
		CreatedAt: b.session.StartTime,
		Metadata: Metadata{
			Name:    b.session.Name,
			Source:  b.session.Source,
			EndedAt: b.session.EndTime,
			Layout:  b.layout,
		},
		TotalFrames: len(data),
		Data:        data,
	}
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// ReadSession loads a session file written by the backend.
func ReadSession(path string) (*SessionExport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var out SessionExport
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return &out, nil
}

// SessionFiles lists session files in dir, newest first.
func SessionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz") {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// Summarize computes the statistics of one exported session. It returns
// false when the session has no frames.
func Summarize(s *SessionExport) (core.SessionSummary, bool) {
	if len(s.Data) == 0 {
		return core.SessionSummary{}, false
	}

	people := make([]float64, len(s.Data))
	incidents := 0
	for i, f := range s.Data {
		people[i] = float64(f.TotalPeople)
		if core.IsIncident(f.GlobalStatus) {
			incidents++
		}
	}

	return core.SessionSummary{
		SessionID:     s.ID,
		Name:          s.Metadata.Name,
		CreatedAt:     s.CreatedAt,
		TotalFrames:   len(s.Data),
		AvgPeople:     stat.Mean(people, nil),
		PeakPeople:    int(floats.Max(people)),
		IncidentCount: incidents,
	}, true
}

// Summaries reads every session file in the output directory, newest first.
// Unreadable files and sessions without frames are skipped.
func (b *Backend) Summaries() ([]core.SessionSummary, error) {
	paths, err := SessionFiles(b.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []core.SessionSummary
	for _, path := range paths {
		s, err := ReadSession(path)
		if err != nil {
			b.log.Warn("Skipping unreadable session file", "path", path, "error", err)
			continue
		}
		if summary, ok := Summarize(s); ok {
			out = append(out, summary)
		}
	}
	return out, nil
}
