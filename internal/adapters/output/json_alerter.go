// Package output provides alert destinations and observability endpoints.
//
// Alert destinations:
//   - MailDispatcher: SMTP delivery to the admin contact
//   - JSONAlerter: buffered JSON lines journal on file or stdout
//   - Fanout: sends to several destinations
//
// Thread Safety: All implementations are safe for concurrent Send() calls.
package output

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// JSONAlerter writes alerts as JSON lines to a file or stdout.
//
// Writes are buffered and flushed every second and on Close; a flush also
// fsyncs the file.
type JSONAlerter struct {
	bufWriter *bufio.Writer
	file      *os.File // nil for stdout/discard
	mu        sync.Mutex
	encoder   *json.Encoder
	stopFlush chan struct{}
	closeOnce sync.Once
}

type JSONAlerterConfig struct {
	FilePath string // journal file (empty for discard)
	Stdout   bool
	Pretty   bool
}

// NewJSONAlerter opens the destination. Stdout wins over FilePath; with
// neither set the alerter discards. Files are created 0600 and appended to.
func NewJSONAlerter(config JSONAlerterConfig) (*JSONAlerter, error) {
	var writer io.Writer
	var file *os.File

	switch {
	case config.Stdout:
		writer = os.Stdout
	case config.FilePath != "":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o750); err != nil {
			return nil, err
		}
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		writer = file
	default:
		writer = io.Discard
	}

	bufWriter := bufio.NewWriterSize(writer, 64*1024)
	a := &JSONAlerter{
		bufWriter: bufWriter,
		file:      file,
		stopFlush: make(chan struct{}),
	}
	a.encoder = json.NewEncoder(bufWriter)
	if config.Pretty {
		a.encoder.SetIndent("", "  ")
	}

	go a.periodicFlush()
	return a, nil
}

func (a *JSONAlerter) periodicFlush() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-a.stopFlush:
			return
		}
	}
}

func (a *JSONAlerter) Send(_ context.Context, alert *domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.encoder.Encode(alert)
}

func (a *JSONAlerter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *JSONAlerter) flushLocked() error {
	if err := a.bufWriter.Flush(); err != nil {
		return err
	}
	if a.file != nil {
		return a.file.Sync()
	}
	return nil
}

// Close stops the flusher, flushes what is buffered and closes the file.
func (a *JSONAlerter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.stopFlush)

		a.mu.Lock()
		defer a.mu.Unlock()

		err = a.flushLocked()
		if a.file != nil {
			if cerr := a.file.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
