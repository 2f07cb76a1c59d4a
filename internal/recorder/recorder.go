// Package recorder writes the on-disk artifacts of one session: append-only
// CSV logs flushed per record and atomically replaced JSON documents.
package recorder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/lookout/internal/gaze"
)

// File names inside a session directory.
const (
	MetaFile    = "session_meta.json"
	SamplesFile = "samples.csv"
	EventsFile  = "events.csv"
	MarkersFile = "markers.csv"
	DebriefFile = "debrief.json"
)

var (
	sampleHeader = []string{"timestamp_mono", "timestamp_wall", "gaze_x_norm", "gaze_y_norm", "confidence", "state"}
	eventHeader  = []string{"from_state", "to_state", "start_time", "end_time", "duration_ms"}
	markerHeader = []string{"timestamp_mono", "timestamp_wall", "label"}
)

// SessionID names a session directory from its start time and mode.
func SessionID(started time.Time, mode string) string {
	return started.Format("2006-01-02_15-04-05") + "_" + mode
}

type csvLog struct {
	f *os.File
	w *csv.Writer
}

func openLog(path string, header []string) (*csvLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	l := &csvLog{f: f, w: csv.NewWriter(f)}
	if err := l.write(header); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *csvLog) write(record []string) error {
	if err := l.w.Write(record); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *csvLog) close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// Session writes the artifacts of one session directory.
// It is safe for concurrent use.
type Session struct {
	dir string

	mu      sync.Mutex
	samples *csvLog
	events  *csvLog
	markers *csvLog
	closed  bool
}

// maxSuffix bounds the directory names CreateUnique tries for one id.
const maxSuffix = 100

// Create makes dir and opens the three logs with their headers. Logs that
// already exist in dir are never overwritten.
func Create(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return openSession(dir)
}

// CreateUnique claims a new directory under root named id, or id_2, id_3 ...
// when that name is taken, and opens the logs in it. The session id is the
// base name of Dir().
func CreateUnique(root, id string) (*Session, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}

	for n := 1; n <= maxSuffix; n++ {
		name := id
		if n > 1 {
			name = fmt.Sprintf("%s_%d", id, n)
		}
		dir := filepath.Join(root, name)

		err := os.Mkdir(dir, 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		return openSession(dir)
	}
	return nil, fmt.Errorf("create session dir: %s taken %d times", id, maxSuffix)
}

func openSession(dir string) (*Session, error) {
	s := &Session{dir: dir}
	var err error
	if s.samples, err = openLog(filepath.Join(dir, SamplesFile), sampleHeader); err != nil {
		return nil, fmt.Errorf("open samples log: %w", err)
	}
	if s.events, err = openLog(filepath.Join(dir, EventsFile), eventHeader); err != nil {
		s.samples.close()
		return nil, fmt.Errorf("open events log: %w", err)
	}
	if s.markers, err = openLog(filepath.Join(dir, MarkersFile), markerHeader); err != nil {
		s.samples.close()
		s.events.close()
		return nil, fmt.Errorf("open markers log: %w", err)
	}
	return s, nil
}

// Dir returns the session directory.
func (s *Session) Dir() string {
	return s.dir
}

// WriteSample appends one sample row.
func (s *Session) WriteSample(smp gaze.Sample) error {
	return s.append(func() error {
		return s.samples.write([]string{
			seconds(smp.Mono),
			wallSeconds(smp.Wall),
			strconv.FormatFloat(smp.X, 'f', 6, 64),
			strconv.FormatFloat(smp.Y, 'f', 6, 64),
			strconv.FormatFloat(smp.Confidence, 'f', 4, 64),
			smp.State.String(),
		})
	})
}

// WriteEvent appends one transition row.
func (s *Session) WriteEvent(ev gaze.TransitionEvent) error {
	return s.append(func() error {
		return s.events.write([]string{
			ev.From.String(),
			ev.To.String(),
			seconds(ev.Start),
			seconds(ev.End),
			strconv.FormatFloat(ev.DurationMs(), 'f', 2, 64),
		})
	})
}

// WriteMarker appends one marker row.
func (s *Session) WriteMarker(m gaze.Marker) error {
	return s.append(func() error {
		return s.markers.write([]string{seconds(m.Mono), wallSeconds(m.Wall), m.Label})
	})
}

// WriteMeta replaces session_meta.json.
func (s *Session) WriteMeta(meta gaze.SessionMeta) error {
	return WriteJSON(filepath.Join(s.dir, MetaFile), meta)
}

// WriteDebrief replaces debrief.json with any JSON-encodable summary.
func (s *Session) WriteDebrief(summary any) error {
	return WriteJSON(filepath.Join(s.dir, DebriefFile), summary)
}

// Close flushes and closes the logs. Later writes are dropped silently.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	for _, l := range []*csvLog{s.samples, s.events, s.markers} {
		if err := l.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Session) append(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return fn()
}

// WriteJSON encodes v to path atomically via a temp file and rename.
func WriteJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

func wallSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}
