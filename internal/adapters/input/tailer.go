package input

import (
	"context"
	"strings"
	"sync"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// Follower tails the live log and parses lines as they are appended. It
// survives truncation by the rotator and re-creation of the file.
type Follower struct {
	path          string
	parser        *AuthLogParser
	tail          *tail.Tail
	bufferSize    int
	fromBeginning bool
	poll          bool
	mu            sync.Mutex
	running       bool
	stopChan      chan struct{}
}

func NewFollower(path string, parser *AuthLogParser, bufferSize int) *Follower {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Follower{
		path:       path,
		parser:     parser,
		bufferSize: bufferSize,
		stopChan:   make(chan struct{}),
	}
}

// SetFromBeginning replays the existing file contents before following.
func (f *Follower) SetFromBeginning(fromBeginning bool) {
	f.fromBeginning = fromBeginning
}

// SetPoll switches from inotify to stat polling.
func (f *Follower) SetPoll(poll bool) {
	f.poll = poll
}

// Start begins tailing. Events carry parsed lines; the error channel carries
// *domain.ParseError for rejected lines and read failures. Denylisted events
// are dropped. Both channels close when ctx ends or Stop is called.
func (f *Follower) Start(ctx context.Context) (<-chan domain.Event, <-chan error) {
	eventChan := make(chan domain.Event, f.bufferSize)
	errChan := make(chan error, 16)

	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		close(eventChan)
		close(errChan)
		return eventChan, errChan
	}
	f.running = true
	f.stopChan = make(chan struct{})
	stop := f.stopChan
	f.mu.Unlock()

	whence := 2
	if f.fromBeginning {
		whence = 0
	}
	t, err := tail.TailFile(f.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      f.poll,
		Logger:    tail.DiscardingLogger,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
	})
	if err != nil {
		log.Error().Err(err).Str("file", f.path).Msg("Failed to tail file")
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		errChan <- err
		close(eventChan)
		close(errChan)
		return eventChan, errChan
	}
	f.mu.Lock()
	f.tail = t
	f.mu.Unlock()

	go func() {
		defer close(eventChan)
		defer close(errChan)

		log.Info().Str("file", f.path).Msg("Started following log file")

		send := func(err error) bool {
			select {
			case errChan <- err:
				return true
			case <-ctx.Done():
				return false
			case <-stop:
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Context cancelled, stopping follower")
				return
			case <-stop:
				return
			case line, ok := <-t.Lines:
				if !ok {
					log.Info().Msg("Tail channel closed")
					return
				}
				if line.Err != nil {
					log.Warn().Err(line.Err).Msg("Error reading line")
					if !send(line.Err) {
						return
					}
					continue
				}
				if strings.TrimSpace(line.Text) == "" {
					continue
				}

				ev, err := f.parser.Parse(line.Text)
				if err != nil {
					log.Debug().Err(err).Str("error_class", "parse").Msg("Rejected log line")
					if !send(err) {
						return
					}
					continue
				}
				if f.parser.Filtered(ev) {
					continue
				}

				select {
				case eventChan <- ev:
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
		}
	}()

	return eventChan, errChan
}

func (f *Follower) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}

	close(f.stopChan)
	f.running = false

	if f.tail != nil {
		err := f.tail.Stop()
		f.tail.Cleanup()
		return err
	}
	return nil
}

func (f *Follower) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}
