package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

type tickRecord struct {
	unit string
	err  error
}

type tickObserver struct {
	ports.NopObserver
	mu    sync.Mutex
	ticks []tickRecord
	seen  chan struct{}
}

func newTickObserver() *tickObserver {
	return &tickObserver{seen: make(chan struct{}, 16)}
}

func (o *tickObserver) ObserveTick(unit string, _ time.Duration, err error) {
	o.mu.Lock()
	o.ticks = append(o.ticks, tickRecord{unit: unit, err: err})
	o.mu.Unlock()
	o.seen <- struct{}{}
}

func (o *tickObserver) records() []tickRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]tickRecord(nil), o.ticks...)
}

func waitTick(t *testing.T, o *tickObserver) {
	t.Helper()
	select {
	case <-o.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func TestUnitSurvivesFailureAndPanic(t *testing.T) {
	clock := newManualClock()
	obs := newTickObserver()

	calls := 0
	svc := &unitService{
		unit: Unit{
			Name:     "flaky",
			Interval: time.Minute,
			Action: func(context.Context) error {
				calls++
				switch calls {
				case 1:
					return errors.New("disk full")
				case 2:
					panic("boom")
				default:
					return nil
				}
			},
		},
		clock:    clock,
		observer: obs,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	ticker := <-clock.created
	waitTick(t, obs)
	ticker.fire()
	waitTick(t, obs)
	ticker.fire()
	waitTick(t, obs)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("unit did not stop on cancel")
	}

	recs := obs.records()
	require.Len(t, recs, 3)
	assert.EqualError(t, recs[0].err, "disk full")
	assert.ErrorContains(t, recs[1].err, "panic: boom")
	assert.NoError(t, recs[2].err)
	assert.True(t, ticker.stopped)
}

func TestUnitRunsOnTrigger(t *testing.T) {
	clock := newManualClock()
	obs := newTickObserver()
	trigger := make(chan struct{})

	svc := &unitService{
		unit: Unit{
			Name:     "ingest",
			Interval: time.Hour,
			Trigger:  trigger,
			Action:   func(context.Context) error { return nil },
		},
		clock:    clock,
		observer: obs,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Serve(ctx)

	<-clock.created
	waitTick(t, obs)
	trigger <- struct{}{}
	waitTick(t, obs)

	assert.Len(t, obs.records(), 2)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	clock := newManualClock()
	obs := newTickObserver()
	s := NewScheduler(clock, obs, SchedulerConfig{ShutdownTimeout: time.Second})

	s.Add(Unit{Name: "a", Interval: time.Minute, Action: func(context.Context) error { return nil }})
	s.Add(Unit{Name: "b", Interval: time.Minute, Action: func(context.Context) error { return errors.New("nope") }})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	waitTick(t, obs)
	waitTick(t, obs)

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	units := map[string]bool{}
	for _, r := range obs.records() {
		units[r.unit] = true
	}
	assert.True(t, units["a"])
	assert.True(t, units["b"])
}
