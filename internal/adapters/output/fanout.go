package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

// Fanout delivers each alert to every destination. Send succeeds when at
// least one destination accepted the alert.
type Fanout struct {
	alerters []ports.Alerter
	observer ports.PipelineObserver
}

func NewFanout(observer ports.PipelineObserver, alerters ...ports.Alerter) *Fanout {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	return &Fanout{alerters: alerters, observer: observer}
}

func (f *Fanout) Send(ctx context.Context, alert *domain.Alert) error {
	var errs []error
	delivered := 0
	for i, a := range f.alerters {
		if err := a.Send(ctx, alert); err != nil {
			log.Error().Err(err).Int("destination", i).Str("alert_id", alert.ID).
				Msg("Alert destination failed")
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	if delivered == 0 && len(f.alerters) > 0 {
		return fmt.Errorf("alert %s not delivered: %w", alert.ID, errors.Join(errs...))
	}
	f.observer.ObserveAlert(alert)
	return nil
}

func (f *Fanout) Flush() error {
	var errs []error
	for _, a := range f.alerters {
		errs = append(errs, a.Flush())
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, a := range f.alerters {
		errs = append(errs, a.Close())
	}
	return errors.Join(errs...)
}
