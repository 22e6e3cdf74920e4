package output

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

type UnitStatus struct {
	Unit       string        `json:"unit"`
	Interval   time.Duration `json:"interval_ns"`
	LastTick   time.Time     `json:"last_tick,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorClass string        `json:"error_class,omitempty"`
	Ticks      int64         `json:"ticks"`
	Stalled    bool          `json:"stalled"`
}

type HealthStatus struct {
	Healthy  bool              `json:"healthy"`
	Status   string            `json:"status"`
	Uptime   time.Duration     `json:"uptime_ns"`
	Units    []UnitStatus      `json:"units"`
	Breakers map[string]string `json:"breakers,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// HealthChecker reports readiness from the scheduler's tick history. A unit
// is stalled when it has not completed a tick within StallFactor intervals.
// It observes ticks only; the other observations are ignored. Watched
// circuit breakers that are not closed degrade the status without making
// the agent unready.
type HealthChecker struct {
	ports.NopObserver

	now         func() time.Time
	startTime   time.Time
	stallFactor int

	mu       sync.RWMutex
	units    map[string]*UnitStatus
	breakers map[string]func() string
}

func NewHealthChecker(now func() time.Time) *HealthChecker {
	if now == nil {
		now = time.Now
	}
	return &HealthChecker{
		now:         now,
		startTime:   now(),
		stallFactor: 3,
		units:       make(map[string]*UnitStatus),
		breakers:    make(map[string]func() string),
	}
}

// WatchBreaker reports the state of a provider's circuit breaker.
func (h *HealthChecker) WatchBreaker(name string, state func() string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breakers[name] = state
}

// Expect registers a unit that must keep ticking every interval.
func (h *HealthChecker) Expect(unit string, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.units[unit] = &UnitStatus{Unit: unit, Interval: interval}
}

func (h *HealthChecker) ObserveTick(unit string, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u, ok := h.units[unit]
	if !ok {
		u = &UnitStatus{Unit: unit}
		h.units[unit] = u
	}
	u.LastTick = h.now()
	u.Ticks++
	u.LastError, u.ErrorClass = "", ""
	if err != nil {
		u.LastError = err.Error()
		u.ErrorClass = domain.ErrorClass(err)
	}
}

func (h *HealthChecker) Check(_ context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := HealthStatus{Healthy: true, Status: "HEALTHY", Uptime: now.Sub(h.startTime)}

	for _, u := range h.units {
		snapshot := *u
		if u.Interval > 0 {
			since := u.LastTick
			if since.IsZero() {
				since = h.startTime
			}
			snapshot.Stalled = now.Sub(since) > time.Duration(h.stallFactor)*u.Interval
		}
		status.Units = append(status.Units, snapshot)

		switch {
		case snapshot.Stalled:
			status.Healthy = false
			status.Status = "STALLED"
			status.Reason = "unit " + u.Unit + " has not ticked recently"
		case snapshot.LastError != "" && status.Healthy:
			status.Status = "DEGRADED"
			status.Reason = "unit " + u.Unit + " failed its last tick"
		}
	}
	sort.Slice(status.Units, func(i, j int) bool { return status.Units[i].Unit < status.Units[j].Unit })

	for name, state := range h.breakers {
		if status.Breakers == nil {
			status.Breakers = make(map[string]string, len(h.breakers))
		}
		s := state()
		status.Breakers[name] = s
		if s != "closed" && status.Status == "HEALTHY" {
			status.Status = "DEGRADED"
			status.Reason = name + " circuit breaker is " + s
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// TeeObserver forwards every observation to all observers.
type TeeObserver []ports.PipelineObserver

func (t TeeObserver) ObserveIngest(parsed, inserted, duplicates, parseErrors, filtered int) {
	for _, o := range t {
		o.ObserveIngest(parsed, inserted, duplicates, parseErrors, filtered)
	}
}

func (t TeeObserver) ObserveSinkFailure(sink string) {
	for _, o := range t {
		o.ObserveSinkFailure(sink)
	}
}

func (t TeeObserver) ObserveAlert(alert *domain.Alert) {
	for _, o := range t {
		o.ObserveAlert(alert)
	}
}

func (t TeeObserver) ObserveRotation(result string) {
	for _, o := range t {
		o.ObserveRotation(result)
	}
}

func (t TeeObserver) ObserveBackup(ok bool) {
	for _, o := range t {
		o.ObserveBackup(ok)
	}
}

func (t TeeObserver) ObserveBanSet(size int) {
	for _, o := range t {
		o.ObserveBanSet(size)
	}
}

func (t TeeObserver) ObserveProviderFailure(provider string) {
	for _, o := range t {
		o.ObserveProviderFailure(provider)
	}
}

func (t TeeObserver) ObserveTick(unit string, d time.Duration, err error) {
	for _, o := range t {
		o.ObserveTick(unit, d, err)
	}
}
