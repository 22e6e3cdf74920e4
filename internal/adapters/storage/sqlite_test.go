package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

func openTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := OpenSQLiteSink(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSQLiteSinkInsertNew(t *testing.T) {
	sink := openTestSink(t)
	ctx := context.Background()

	batch := []domain.Event{ev(0, "a"), ev(1, "b"), ev(0, "a")}
	inserted, err := sink.InsertNew(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, inserted, 2, "in-batch duplicate is seen by the lookup")

	inserted, err = sink.InsertNew(ctx, []domain.Event{ev(1, "b"), ev(2, "c")})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "c", inserted[0].Message)

	n, err := sink.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := sink.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Message)
	assert.Equal(t, "b", recent[1].Message)
}

func TestSQLiteSinkSameMessageDifferentTime(t *testing.T) {
	sink := openTestSink(t)

	inserted, err := sink.InsertNew(context.Background(), []domain.Event{ev(0, "x"), ev(1, "x")})
	require.NoError(t, err)
	assert.Len(t, inserted, 2)
}

func TestSQLiteSinkCancelledContext(t *testing.T) {
	sink := openTestSink(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sink.InsertNew(ctx, []domain.Event{ev(0, "a")})
	require.Error(t, err)

	n, err := sink.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteSinkConcurrentBatches(t *testing.T) {
	sink := openTestSink(t)
	ctx := context.Background()

	batch := make([]domain.Event, 50)
	for i := range batch {
		batch[i] = ev(i%60, fmt.Sprintf("msg-%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := sink.InsertNew(ctx, batch)
			assert.NoError(t, err)
			mu.Lock()
			total += len(inserted)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, total)
	n, err := sink.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}
