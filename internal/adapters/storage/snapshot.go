package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

type snapshotRecord struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// JSONSnapshot keeps the full event set as a pretty-printed JSON array.
type JSONSnapshot struct {
	path string
	mu   sync.Mutex
}

func NewJSONSnapshot(path string) *JSONSnapshot {
	return &JSONSnapshot{path: path}
}

func (s *JSONSnapshot) Path() string { return s.path }

// Load returns the stored events. A missing or empty file is an empty set.
func (s *JSONSnapshot) Load(ctx context.Context) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	events := make([]domain.Event, 0, len(records))
	for i, r := range records {
		ts, err := domain.ParseTimestamp(r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("snapshot record %d: %w", i, err)
		}
		events = append(events, domain.NewEvent(ts, r.Message))
	}
	return events, nil
}

// Replace writes events to a temp file in the same directory, fsyncs it and
// renames it over the snapshot.
func (s *JSONSnapshot) Replace(ctx context.Context, events []domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]snapshotRecord, len(events))
	for i, e := range events {
		records[i] = snapshotRecord{Timestamp: e.TimestampText(), Message: e.Message}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data, 0o640)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
