package app

import (
	"sync"
	"time"
)

// manualClock hands out tickers that fire only when the test says so.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	created chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		created: make(chan *manualTicker, 8),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	c.created <- t
	return t
}

type manualTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// fire blocks until the unit loop receives the tick.
func (t *manualTicker) fire() {
	t.ch <- time.Time{}
}
