package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

// Unit is one periodic job. Action runs once at start, then on every tick
// of Interval and on every signal received from Trigger (which may be nil).
type Unit struct {
	Name     string
	Interval time.Duration
	Trigger  <-chan struct{}
	Action   func(ctx context.Context) error
}

type SchedulerConfig struct {
	// FailureThreshold is the number of service restarts before suture
	// backs off. Default: 5
	FailureThreshold float64
	// FailureDecay in seconds. Default: 30
	FailureDecay float64
	// FailureBackoff. Default: 15s
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long a unit may take to return after
	// cancellation. Default: 10s
	ShutdownTimeout time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Scheduler runs units as services of one suture supervisor. A failing or
// panicking action is logged and the unit waits for its next tick; the
// supervisor only restarts a unit whose loop itself died.
type Scheduler struct {
	sup      *suture.Supervisor
	clock    Clock
	observer ports.PipelineObserver
}

func NewScheduler(clock Clock, observer ports.PipelineObserver, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}

	sup := suture.New("authwatch", suture.Spec{
		EventHook:        logSupervisorEvent,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	return &Scheduler{sup: sup, clock: clock, observer: observer}
}

// Add registers a periodic unit.
func (s *Scheduler) Add(u Unit) {
	s.sup.Add(&unitService{unit: u, clock: s.clock, observer: s.observer})
}

// AddService registers a long-running service such as a file watcher.
func (s *Scheduler) AddService(svc suture.Service) {
	s.sup.Add(svc)
}

// Serve blocks until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	return s.sup.Serve(ctx)
}

func logSupervisorEvent(e suture.Event) {
	log.Warn().Fields(e.Map()).Msg(e.String())
}

type unitService struct {
	unit     Unit
	clock    Clock
	observer ports.PipelineObserver
}

func (u *unitService) String() string { return u.unit.Name }

func (u *unitService) Serve(ctx context.Context) error {
	ticker := u.clock.NewTicker(u.unit.Interval)
	defer ticker.Stop()

	log.Info().Str("unit", u.unit.Name).Dur("interval", u.unit.Interval).Msg("Unit started")

	for {
		if err := ctx.Err(); err != nil {
			log.Info().Str("unit", u.unit.Name).Msg("Unit stopped")
			return err
		}
		u.tick(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.C():
		case <-u.unit.Trigger:
		}
	}
}

func (u *unitService) tick(ctx context.Context) {
	start := u.clock.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error().Interface("panic", r).Str("unit", u.unit.Name).Msg("Unit action panic recovered")
		}
		elapsed := u.clock.Now().Sub(start)
		u.observer.ObserveTick(u.unit.Name, elapsed, err)
		if err != nil {
			log.Error().Err(err).
				Str("unit", u.unit.Name).
				Str("error_class", domain.ErrorClass(err)).
				Dur("elapsed", elapsed).
				Msg("Unit tick failed")
			return
		}
		log.Debug().Str("unit", u.unit.Name).Dur("elapsed", elapsed).Msg("Unit tick done")
	}()
	err = u.unit.Action(ctx)
}
