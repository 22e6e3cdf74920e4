package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

// PipelineDeps wires the collaborators of a Pipeline. Rotator and Backuper
// are only needed by Maintain; DetectSource, Detector and Alerter only by
// Detect.
type PipelineDeps struct {
	Source       ports.LineSource
	Parser       ports.LogParser
	Store        ports.EventStore
	Errors       ports.ParseErrorSink
	DetectSource ports.LineSource
	Detector     ports.FailureDetector
	Alerter      ports.Alerter
	Rotator      ports.Rotator
	Backuper     ports.Backuper
	Observer     ports.PipelineObserver
}

// IngestSummary reports one pass over the live log.
type IngestSummary struct {
	ports.IngestReport
	Parsed      int
	ParseErrors int
	Filtered    int
}

// Pipeline moves raw log lines into the event store and raises threshold
// alerts. Ingest and rotation are serialized so a line is never rotated
// away between being read and being stored.
type Pipeline struct {
	deps PipelineDeps
	mu   sync.Mutex
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Observer == nil {
		deps.Observer = ports.NopObserver{}
	}
	if deps.DetectSource == nil {
		deps.DetectSource = deps.Source
	}
	return &Pipeline{deps: deps}
}

// Ingest parses the whole live log and stores the novel events. A missing
// live log is not an error. Parse errors replace the side-channel contents.
func (p *Pipeline) Ingest(ctx context.Context) (IngestSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ingest(ctx)
}

func (p *Pipeline) ingest(ctx context.Context) (IngestSummary, error) {
	var (
		summary IngestSummary
		events  []domain.Event
		rejects []string
	)

	lines, readErr := p.deps.Source.Lines(ctx)
	for ev, err := range p.deps.Parser.ParseLines(lines) {
		var pe *domain.ParseError
		switch {
		case err == nil:
			events = append(events, ev)
		case errors.Is(err, domain.ErrFiltered):
			summary.Filtered++
		case errors.As(err, &pe):
			rejects = append(rejects, pe.Line)
			log.Debug().Err(pe.Reason).Str("error_class", "parse").Msg("Rejected log line")
		}
	}
	if err := readErr(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("source", p.deps.Source.Name()).Msg("Live log absent, nothing to ingest")
			return summary, nil
		}
		return summary, fmt.Errorf("read %s: %w", p.deps.Source.Name(), err)
	}
	summary.Parsed = len(events)
	summary.ParseErrors = len(rejects)

	if len(rejects) > 0 {
		log.Warn().Int("count", len(rejects)).Str("error_class", "parse").Msg("Lines rejected by parser")
	}
	if p.deps.Errors != nil {
		if err := p.deps.Errors.Replace(rejects); err != nil {
			log.Warn().Err(err).Msg("Failed to write parse error file")
		}
	}

	report, err := p.deps.Store.Ingest(ctx, events)
	summary.IngestReport = report
	for _, pe := range persistenceFailures(err) {
		p.deps.Observer.ObserveSinkFailure(pe.Sink)
	}
	p.deps.Observer.ObserveIngest(summary.Parsed, report.Inserted, report.Duplicates, summary.ParseErrors, summary.Filtered)

	log.Info().
		Int("parsed", summary.Parsed).
		Int("inserted", report.Inserted).
		Int("duplicates", report.Duplicates).
		Int("parse_errors", summary.ParseErrors).
		Int("filtered", summary.Filtered).
		Msg("Ingest complete")

	return summary, err
}

// Detect scans the detection source, raises one alert per source at or above
// the threshold and dispatches it. The alerts are returned even when some
// could not be delivered.
func (p *Pipeline) Detect(ctx context.Context) ([]*domain.Alert, error) {
	lines, readErr := p.deps.DetectSource.Lines(ctx)
	tally, err := p.deps.Detector.Scan(ctx, lines)
	if err != nil {
		return nil, err
	}
	if err := readErr(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", p.deps.DetectSource.Name(), err)
	}

	alerts := p.deps.Detector.Evaluate(tally)
	var errs []error
	for _, a := range alerts {
		log.Warn().
			Str("source", a.Source).
			Int("count", a.Count).
			Str("level", string(a.Level)).
			Msg("Failed login threshold exceeded")
		if err := p.deps.Alerter.Send(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("dispatch alert for %s: %w", a.Source, err))
		}
	}
	return alerts, errors.Join(errs...)
}

// Maintain ingests, then rotates the live log, then backs up the
// configured files. Rotation is skipped when the live log could not be read
// or the index did not take the new events; a snapshot-only failure does not
// hold it back.
func (p *Pipeline) Maintain(ctx context.Context) error {
	var errs []error

	p.mu.Lock()
	_, ingestErr := p.ingest(ctx)
	if ingestErr != nil {
		errs = append(errs, ingestErr)
	}
	if holdsRotation(ingestErr) {
		p.deps.Observer.ObserveRotation("skipped")
		log.Warn().Err(ingestErr).Msg("Ingest failed, rotation postponed")
	} else if p.deps.Rotator != nil {
		rec, err := p.deps.Rotator.Rotate(ctx)
		switch {
		case err != nil:
			errs = append(errs, err)
			p.deps.Observer.ObserveRotation("failed")
			log.Error().Err(err).Str("error_class", "rotation").Msg("Rotation failed")
		case rec.Rotated:
			p.deps.Observer.ObserveRotation("rotated")
		default:
			p.deps.Observer.ObserveRotation("skipped")
		}
	}
	p.mu.Unlock()

	if p.deps.Backuper != nil {
		failed := 0
		for _, r := range p.deps.Backuper.Backup(ctx) {
			p.deps.Observer.ObserveBackup(r.Err == nil)
			if r.Err != nil {
				failed++
				errs = append(errs, fmt.Errorf("backup %s: %w", r.Source, r.Err))
			}
		}
		if failed > 0 {
			log.Warn().Int("failed", failed).Msg("Some backups failed")
		}
	}
	return errors.Join(errs...)
}

// Follow stores events as they arrive from a follower, one per write, and
// appends rejected lines to the side channel. It returns when both channels
// are closed or ctx ends.
func (p *Pipeline) Follow(ctx context.Context, events <-chan domain.Event, errs <-chan error) error {
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			report, err := p.deps.Store.Ingest(ctx, []domain.Event{ev})
			for _, pe := range persistenceFailures(err) {
				p.deps.Observer.ObserveSinkFailure(pe.Sink)
			}
			p.deps.Observer.ObserveIngest(1, report.Inserted, report.Duplicates, 0, 0)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			var pe *domain.ParseError
			if !errors.As(err, &pe) {
				log.Warn().Err(err).Msg("Follower read error")
				continue
			}
			p.deps.Observer.ObserveIngest(0, 0, 0, 1, 0)
			if p.deps.Errors != nil {
				if err := p.deps.Errors.Append(pe.Line); err != nil {
					log.Warn().Err(err).Msg("Failed to append parse error")
				}
			}
		}
	}
	return nil
}

// holdsRotation reports whether an ingest error leaves lines of the live log
// unrecorded in the index.
func holdsRotation(err error) bool {
	if err == nil {
		return false
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range multi.Unwrap() {
			if holdsRotation(e) {
				return true
			}
		}
		return false
	}
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return pe.Sink == domain.SinkIndex
	}
	return true
}

// persistenceFailures flattens a joined error into its sink failures.
func persistenceFailures(err error) []*domain.PersistenceError {
	if err == nil {
		return nil
	}
	var out []*domain.PersistenceError
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range multi.Unwrap() {
			out = append(out, persistenceFailures(e)...)
		}
		return out
	}
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		out = append(out, pe)
	}
	return out
}
