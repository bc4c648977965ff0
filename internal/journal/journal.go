// Package journal implements the append-only JSON lines files the hub keeps
// tokens and users in. Records are appended one line at a time; compaction
// replaces the whole file atomically.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// ErrLocked is returned when another process already owns the journal
var ErrLocked = errors.New("journal is locked by another process")

// maxLineSize bounds a single record line
const maxLineSize = 1 << 20

// Journal is a single-writer JSON lines file
type Journal struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

// Open takes an exclusive lock on path and returns its journal.
// The file itself is created lazily on first append.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock journal %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return &Journal{path: path, lock: lock}, nil
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.path
}

// Append writes record as one JSON line and syncs it to disk
func (j *Journal) Append(record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append record: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	return f.Close()
}

// Replay calls fn with every non-empty line in file order.
// A missing file replays nothing. An error from fn stops the replay.
func (j *Journal) Replay(fn func(line []byte) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	return nil
}

// Rewrite atomically replaces the journal with the given records
func (j *Journal) Rewrite(records []any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := atomic.WriteFile(j.path, &buf); err != nil {
		return fmt.Errorf("rewrite journal: %w", err)
	}
	return nil
}

// Close releases the journal lock
func (j *Journal) Close() error {
	return j.lock.Unlock()
}
