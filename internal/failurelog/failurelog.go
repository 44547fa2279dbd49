// Package failurelog records per-entity lookup failures to <output>/Processing.log.
package failurelog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the log file created inside the output directory.
const FileName = "Processing.log"

// Writer appends one line per failure. Appends hold an exclusive file lock so
// processes sharing an output directory do not interleave lines.
type Writer struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// Open prepares dir/Processing.log: the directory is created if missing and a
// log left by a previous run is removed.
func Open(dir string, logger *slog.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("failure log requires an output directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock failure log: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale failure log: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create failure log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("create failure log: %w", err)
	}

	return &Writer{path: path, lock: lock, now: time.Now, logger: logger}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Report appends a failure line for entity. Write errors are logged, not returned,
// so a broken log never fails a lookup.
func (w *Writer) Report(entity string, err error) {
	line := fmt.Sprintf("%s\t%q\t%s\n", w.now().UTC().Format(time.RFC3339), entity, oneLine(err))
	if werr := w.append(line); werr != nil {
		w.logger.Error("failed to write failure log", "path", w.path, "err", werr)
	}
}

func (w *Writer) append(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer w.lock.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write: %w", err)
	}
	return f.Close()
}

func oneLine(err error) string {
	if err == nil {
		return "unknown error"
	}
	return strings.ReplaceAll(err.Error(), "\n", " ")
}

// Discard drops every report.
type Discard struct{}

func (Discard) Report(string, error) {}
