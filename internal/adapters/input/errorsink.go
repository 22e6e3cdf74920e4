package input

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileErrorSink stores rejected raw lines in a plain text file, one per line.
type FileErrorSink struct {
	path string
	mu   sync.Mutex
}

func NewFileErrorSink(path string) *FileErrorSink {
	return &FileErrorSink{path: path}
}

func (s *FileErrorSink) Path() string { return s.path }

// Replace swaps the file for exactly lines through a temp file and rename,
// so readers never see a half-written batch.
func (s *FileErrorSink) Replace(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create error file dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp error file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write error file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync error file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close error file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace error file: %w", err)
	}
	return nil
}

func (s *FileErrorSink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open error file: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append error file: %w", err)
	}
	return f.Close()
}
