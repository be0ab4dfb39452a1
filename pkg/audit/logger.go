package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/newtron-network/newtcli/pkg/session"
	"github.com/newtron-network/newtcli/pkg/util"
)

// maxEventSize bounds one JSON-lines record. Larger events have their
// transcript output cut to fit.
const maxEventSize = 4 << 20

// Logger is an audit backend.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// RotationConfig configures log file rotation. Rotated files are numbered
// path.1 (newest) through path.MaxBackups.
type RotationConfig struct {
	MaxSize    int64 // bytes before rotation; 0 never rotates
	MaxBackups int   // rotated files kept; at least one
}

// FileLogger appends events to a JSON-lines file. Queries read the
// rotated files too, oldest first, so an event stays visible until its
// file is dropped.
type FileLogger struct {
	mu       sync.RWMutex
	path     string
	file     *os.File
	size     int64
	rotation RotationConfig
}

// NewFileLogger opens path for appending, creating its directory.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	if rotation.MaxBackups < 1 {
		rotation.MaxBackups = 1
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("opening audit log: %w", err)
	}
	l.file, l.size = f, info.Size()
	return nil
}

// Log appends one event, rotating first when the record would take the
// file past MaxSize.
func (l *FileLogger) Log(event *Event) error {
	line, err := encodeLine(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if limit := l.rotation.MaxSize; limit > 0 && l.size > 0 && l.size+int64(len(line)) > limit {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// encodeLine marshals event as one line, cutting transcript output when
// the record would exceed maxEventSize.
func encodeLine(event *Event) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding audit event: %w", err)
	}
	if len(b) >= maxEventSize && len(event.Transcripts) > 0 {
		trimmed := *event
		trimmed.Transcripts = truncateOutput(event.Transcripts, (maxEventSize/2)/len(event.Transcripts))
		trimmed.Truncated = true
		if b, err = json.Marshal(&trimmed); err != nil {
			return nil, fmt.Errorf("encoding audit event: %w", err)
		}
	}
	return append(b, '\n'), nil
}

func truncateOutput(trs []*session.Transcript, limit int) []*session.Transcript {
	out := make([]*session.Transcript, len(trs))
	for i, tr := range trs {
		c := *tr
		if len(c.Output) > limit {
			c.Output = c.Output[:limit]
		}
		out[i] = &c
	}
	return out
}

// rotate shifts path.N-1 to path.N down to path to path.1, dropping the
// oldest, and starts a new file.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil
	n := l.rotation.MaxBackups
	os.Remove(l.backup(n))
	for i := n - 1; i >= 1; i-- {
		if err := os.Rename(l.backup(i), l.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(l.path, l.backup(1)); err != nil {
		return err
	}
	return l.open()
}

func (l *FileLogger) backup(i int) string {
	return fmt.Sprintf("%s.%d", l.path, i)
}

// Query returns matching events in the order they were logged.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	files := make([]string, 0, l.rotation.MaxBackups+1)
	for i := l.rotation.MaxBackups; i >= 1; i-- {
		files = append(files, l.backup(i))
	}
	files = append(files, l.path)

	events := []*Event{}
	for _, name := range files {
		var err error
		if events, err = scanFile(name, filter, events); err != nil {
			return nil, err
		}
	}
	return filter.page(events), nil
}

func scanFile(name string, filter Filter, events []*Event) ([]*Event, error) {
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return events, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 2*maxEventSize)
	for lineNo := 1; sc.Scan(); lineNo++ {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			util.Warnf("audit: skipping malformed entry at %s:%d: %v", filepath.Base(name), lineNo, err)
			continue
		}
		if filter.Matches(&e) {
			events = append(events, &e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return events, nil
}

// Close closes the log file. Later Log calls fail.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Open returns the backend named by kind: "file" (the default) writes
// JSON lines to path, "sqlite" a database at path.
func Open(kind, path string) (Logger, error) {
	switch kind {
	case "", "file":
		return NewFileLogger(path, RotationConfig{MaxSize: 64 << 20, MaxBackups: 5})
	case "sqlite":
		return NewSQLiteLogger(path)
	}
	return nil, fmt.Errorf("%w: unknown audit backend %q", util.ErrInvalidConfig, kind)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// SetDefaultLogger sets the logger used by Log and Query; nil disables
// auditing.
func SetDefaultLogger(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Log records event with the default logger, if any.
func Log(event *Event) error {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Log(event)
}

// Query searches the default logger; with none set it finds nothing.
func Query(filter Filter) ([]*Event, error) {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l == nil {
		return []*Event{}, nil
	}
	return l.Query(filter)
}
