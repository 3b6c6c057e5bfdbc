package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rfid.attendance/internal/core/model"
)

// FileTrail appends one human-readable line per event to a text file.
type FileTrail struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFileTrail opens path for appending, creating it and its directory if needed.
func OpenFileTrail(path string) (*FileTrail, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}
	return &FileTrail{file: f}, nil
}

// Append writes and syncs the event's audit line.
func (t *FileTrail) Append(_ context.Context, event model.RecordedEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return os.ErrClosed
	}
	if _, err := t.file.WriteString(event.AuditLine() + "\n"); err != nil {
		return err
	}
	return t.file.Sync()
}

func (t *FileTrail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
