package output

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func TestHealthChecker(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := NewHealthChecker(clk.Now)
	h.Expect("ingest", time.Minute)
	h.Expect("monitor", time.Minute)
	ctx := context.Background()

	status := h.Check(ctx)
	assert.True(t, status.Healthy)
	require.Len(t, status.Units, 2)
	assert.Equal(t, "ingest", status.Units[0].Unit)

	clk.t = clk.t.Add(30 * time.Second)
	h.ObserveTick("ingest", time.Millisecond, nil)
	h.ObserveTick("monitor", time.Millisecond, &domain.ProviderError{Provider: "fail2ban", Err: errors.New("down")})

	status = h.Check(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, "DEGRADED", status.Status)
	assert.Equal(t, "provider", status.Units[1].ErrorClass)

	clk.t = clk.t.Add(2 * time.Minute)
	h.ObserveTick("monitor", time.Millisecond, nil)
	clk.t = clk.t.Add(2 * time.Minute)

	status = h.Check(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "STALLED", status.Status)
	assert.True(t, status.Units[0].Stalled)
	assert.False(t, status.Units[1].Stalled)
}

func TestHealthCheckerHTTP(t *testing.T) {
	clk := &manualClock{t: time.Now()}
	h := NewHealthChecker(clk.Now)
	h.Expect("ingest", time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)

	clk.t = clk.t.Add(time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheckerBreaker(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := NewHealthChecker(clk.Now)
	state := "closed"
	h.WatchBreaker("fail2ban", func() string { return state })

	status := h.Check(context.Background())
	assert.Equal(t, "HEALTHY", status.Status)
	assert.Equal(t, map[string]string{"fail2ban": "closed"}, status.Breakers)

	state = "open"
	status = h.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "DEGRADED", status.Status)
	assert.Equal(t, "fail2ban circuit breaker is open", status.Reason)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"breakers":{"fail2ban":"open"}`)
}

func TestTeeObserver(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	var tee ports.PipelineObserver = TeeObserver{a, b}

	tee.ObserveAlert(domain.NewAlert(domain.AlertKindBanList, domain.AlertLevelInfo, "", ""))
	tee.ObserveTick("x", 0, nil)

	assert.Equal(t, 1, a.alerts)
	assert.Equal(t, 1, b.alerts)
}
