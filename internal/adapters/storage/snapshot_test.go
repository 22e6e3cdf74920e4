package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

func ev(sec int, msg string) domain.Event {
	return domain.NewEvent(time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC), msg)
}

func TestJSONSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := NewJSONSnapshot(filepath.Join(dir, "events.json"))
	ctx := context.Background()

	events, err := snap.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	in := []domain.Event{
		ev(0, "Failed password for root from 10.0.0.5"),
		domain.NewEvent(time.Date(2024, 1, 1, 0, 0, 1, 250000000, time.UTC), "with fraction"),
	}
	require.NoError(t, snap.Replace(ctx, in))

	out, err := snap.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].Key(), out[i].Key())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not survive the rename")
}

func TestJSONSnapshotFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	snap := NewJSONSnapshot(path)

	require.NoError(t, snap.Replace(context.Background(), []domain.Event{ev(0, "hello")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"timestamp\": \"2024-01-01 00:00:00\",\n        \"message\": \"hello\"\n    }\n]\n", string(data))
}

func TestJSONSnapshotCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewJSONSnapshot(path).Load(context.Background())
	assert.Error(t, err)
}

func TestJSONSnapshotEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	events, err := NewJSONSnapshot(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}
