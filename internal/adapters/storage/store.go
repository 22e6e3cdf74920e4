// Package storage persists ingested events and the ban-list state.
//
// EventStore writes every batch to two sinks: the indexed SQLite table,
// which enforces (timestamp, message) uniqueness, and the JSON snapshot,
// which is rewritten to hold the full accumulated set. Each sink is attempted
// independently; a failing sink never prevents the other from being written.
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
	"github.com/Tchoumis/Projet-scripting-securise-v1/pkg/lru"
)

const (
	SinkIndex    = domain.SinkIndex
	SinkSnapshot = domain.SinkSnapshot
)

type EventStore struct {
	index    ports.IndexedSink
	snapshot ports.SnapshotSink
	known    *lru.Set[domain.EventKey]
	snapMu   sync.Mutex
}

// NewEventStore wires the two sinks. cacheSize bounds the set of keys
// remembered as already indexed.
func NewEventStore(index ports.IndexedSink, snapshot ports.SnapshotSink, cacheSize int) *EventStore {
	return &EventStore{
		index:    index,
		snapshot: snapshot,
		known:    lru.New[domain.EventKey](cacheSize),
	}
}

// Ingest stores the novel events of a batch. Ingesting the same batch twice
// changes nothing the second time. Sink failures come back as joined
// *domain.PersistenceError values; the report still describes what succeeded.
func (s *EventStore) Ingest(ctx context.Context, events []domain.Event) (ports.IngestReport, error) {
	report := ports.IngestReport{Received: len(events), SnapshotSize: -1}
	var errs []error

	batch := make([]domain.Event, 0, len(events))
	keys := make([]domain.EventKey, 0, len(events))
	seen := make(map[domain.EventKey]struct{}, len(events))
	for _, e := range events {
		k := e.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if s.known.Contains(k) {
			continue
		}
		batch = append(batch, e)
		keys = append(keys, k)
	}

	inserted, err := s.index.InsertNew(ctx, batch)
	if err != nil {
		errs = append(errs, &domain.PersistenceError{Sink: SinkIndex, Op: "insert", Err: err})
		log.Error().Err(err).Str("error_class", "persistence").Str("sink", SinkIndex).
			Int("batch", len(batch)).Msg("Indexed sink write failed")
	} else {
		s.known.AddAll(keys)
		report.Inserted = len(inserted)
		report.Duplicates = len(events) - len(inserted)
	}

	if n, err := s.mergeSnapshot(ctx, events); err != nil {
		errs = append(errs, err)
		log.Error().Err(err).Str("error_class", "persistence").Str("sink", SinkSnapshot).
			Msg("Snapshot sink write failed")
	} else {
		report.SnapshotSize = n
	}

	return report, errors.Join(errs...)
}

// mergeSnapshot rewrites the snapshot as its previous contents plus events.
// The file is left alone when nothing new arrived. A snapshot that cannot be
// read is not overwritten.
func (s *EventStore) mergeSnapshot(ctx context.Context, events []domain.Event) (int, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	existing, err := s.snapshot.Load(ctx)
	if err != nil {
		return 0, &domain.PersistenceError{Sink: SinkSnapshot, Op: "load", Err: err}
	}
	merged := domain.MergeEvents(existing, events)
	if len(merged) == len(existing) {
		return len(merged), nil
	}
	if err := s.snapshot.Replace(ctx, merged); err != nil {
		return 0, &domain.PersistenceError{Sink: SinkSnapshot, Op: "replace", Err: err}
	}
	return len(merged), nil
}

// Snapshot replaces the snapshot contents with exactly events.
func (s *EventStore) Snapshot(ctx context.Context, events []domain.Event) error {
	sorted := domain.MergeEvents(nil, events)

	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if err := s.snapshot.Replace(ctx, sorted); err != nil {
		return &domain.PersistenceError{Sink: SinkSnapshot, Op: "replace", Err: err}
	}
	return nil
}

func (s *EventStore) Recent(ctx context.Context, n int) ([]domain.Event, error) {
	return s.index.Recent(ctx, n)
}

func (s *EventStore) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

func (s *EventStore) Close() error {
	return s.index.Close()
}
