package sink

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/armash/log-ingestor/internal/types"
)

// Destination identifies where a Sink writes. It is fixed when the Sink is built.
type Destination int

const (
	Console Destination = iota
	File
)

func (d Destination) String() string {
	if d == File {
		return "file"
	}
	return "console"
}

// Sink serializes record writes from concurrent workers. Each call to Write
// emits one complete line.
type Sink struct {
	mu   sync.Mutex
	dest Destination
	w    *bufio.Writer
	file *os.File
	path string
	err  error
}

// New returns a Sink appending to the file at path. When path is empty, or the
// file cannot be opened, records go to console instead; the open failure is
// logged once.
func New(path string, console io.Writer, logger *slog.Logger) *Sink {
	if path != "" {
		f, err := openAppend(path)
		if err == nil {
			return &Sink{dest: File, w: bufio.NewWriter(f), file: f, path: path}
		}
		logger.Warn("unable to open output file, falling back to stdout", "path", path, "error", err)
	}
	return &Sink{dest: Console, w: bufio.NewWriter(console)}
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// Write renders rec as one line and flushes it. On console the line is
// suffixed with the writing worker's id.
func (s *Sink) Write(rec types.Record, worker int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.WriteString(rec.String())
	if s.dest == Console {
		s.w.WriteString(" (worker ")
		s.w.WriteString(strconv.Itoa(worker))
		s.w.WriteByte(')')
	}
	s.w.WriteByte('\n')
	if err := s.w.Flush(); err != nil && s.err == nil {
		s.err = err
	}
}

// Destination reports where the sink writes.
func (s *Sink) Destination() Destination {
	return s.dest
}

// Path returns the output file path, or "" for console.
func (s *Sink) Path() string {
	return s.path
}

// Err returns the first write error seen, if any.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes pending output and closes the output file. Console sinks are
// left open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.w.Flush()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}
