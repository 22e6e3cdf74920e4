package ports

import (
	"context"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// IndexedSink is the append-only, uniqueness-enforcing event table.
//
// Thread Safety: InsertNew serializes its lookup-then-insert, so concurrent
// batches never insert the same key twice.
type IndexedSink interface {
	// InsertNew stores the events whose key is not yet present, inside one
	// transaction. On error nothing from the batch is stored.
	//
	// Returns the events actually inserted.
	InsertNew(ctx context.Context, events []domain.Event) ([]domain.Event, error)

	// Recent returns up to n events, newest first.
	Recent(ctx context.Context, n int) ([]domain.Event, error)

	Count(ctx context.Context) (int, error)

	Close() error
}

// SnapshotSink holds the complete event set as one document.
type SnapshotSink interface {
	// Load returns the current snapshot contents (empty if none exists yet).
	Load(ctx context.Context) ([]domain.Event, error)

	// Replace atomically swaps the snapshot for exactly events.
	Replace(ctx context.Context, events []domain.Event) error
}

// BanStateStore remembers the last observed ban set across restarts.
type BanStateStore interface {
	LoadBanState(ctx context.Context) (domain.BanSet, error)
	SaveBanState(ctx context.Context, set domain.BanSet) error
}
