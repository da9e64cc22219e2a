// Package eventlog is the append-only lifecycle log: one timestamped line per
// connection or registry event. It is separate from operational logging in
// internal/obs; this file is the record an operator greps after the fact.
package eventlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Sink appends one event line. Implementations must be safe for concurrent
// use; pumps from many connections log completion records in parallel.
type Sink interface {
	Append(msg string)
}

// FileSink writes `[YYYY-MM-DD HH:MM:SS] <msg>` lines to a single file and
// optionally tees them to an extra writer (stdout in the server). There is no
// mid-run rotation; a pre-existing file is moved aside once at open.
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	tee io.Writer
}

// Open creates the log directory if needed and opens the log file. If the
// file already exists it is renamed to a timestamped sibling first, so every
// process run starts a fresh log.
func Open(path string, tee io.Writer) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		archived := archiveName(path, time.Now())
		if err := os.Rename(path, archived); err != nil {
			return nil, fmt.Errorf("archive previous log: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &FileSink{f: f, tee: tee}, nil
}

func archiveName(path string, now time.Time) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, now.Format("20060102_150405"), ext))
}

func (s *FileSink) Append(msg string) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.f.WriteString(line)
	if s.tee != nil {
		_, _ = io.WriteString(s.tee, line)
	}
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Nop discards all events. Used in tests.
type Nop struct{}

func (Nop) Append(string) {}
