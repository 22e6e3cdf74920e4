package ports

import (
	"context"
	"iter"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// IngestReport summarizes one EventStore.Ingest call.
type IngestReport struct {
	Received   int
	Inserted   int
	Duplicates int
	// SnapshotSize is the number of events in the snapshot after the write,
	// or -1 when the snapshot sink failed.
	SnapshotSize int
}

// EventStore is the dual-sink persistence layer the pipeline writes to.
type EventStore interface {
	Ingest(ctx context.Context, events []domain.Event) (IngestReport, error)
	Snapshot(ctx context.Context, events []domain.Event) error
	Recent(ctx context.Context, n int) ([]domain.Event, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// LogParser turns raw lines into events. Failures are yielded as
// *domain.ParseError; denylisted events are yielded with domain.ErrFiltered.
type LogParser interface {
	ParseLines(lines iter.Seq[string]) iter.Seq2[domain.Event, error]
}

// FailureDetector counts failed attempts per source and turns the tally
// into alerts.
type FailureDetector interface {
	Scan(ctx context.Context, lines iter.Seq[string]) (domain.FailureTally, error)
	Evaluate(tally domain.FailureTally) []*domain.Alert
}

// Rotator archives the live log once it grows past its limit.
type Rotator interface {
	Rotate(ctx context.Context) (domain.RotationRecord, error)
}

// Backuper copies sensitive files aside. One result per configured file.
type Backuper interface {
	Backup(ctx context.Context) []domain.BackupResult
}
