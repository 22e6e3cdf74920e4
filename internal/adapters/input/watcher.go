package input

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// WriteWatcher signals when the live log is written to or re-created. It
// watches the parent directory so the watch survives rotation.
type WriteWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	trigger  chan struct{}
}

func NewWriteWatcher(path string, debounce time.Duration) (*WriteWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &WriteWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  w,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// C delivers at most one pending signal; bursts of writes coalesce.
func (w *WriteWatcher) C() <-chan struct{} {
	return w.trigger
}

// Serve forwards events until ctx is cancelled or the watcher is closed.
func (w *WriteWatcher) Serve(ctx context.Context) error {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if now := time.Now(); now.Sub(last) >= w.debounce {
				last = now
				select {
				case w.trigger <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("file", w.path).Msg("Log watcher error")
		}
	}
}

func (w *WriteWatcher) Close() error {
	return w.watcher.Close()
}
