package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

// Event messages recorded on ban-list transitions.
const (
	BanListEventPrefix  = "fail2ban ban list: "
	BanListClearedEvent = "fail2ban ban list cleared"
)

type BanPollerDeps struct {
	Provider ports.BanListProvider
	// Parse extracts the ban set from the provider's raw status text.
	Parse    func(string) (domain.BanSet, error)
	State    ports.BanStateStore
	Store    ports.EventStore
	Alerter  ports.Alerter
	Observer ports.PipelineObserver
	// AlertOnClear also alerts when the list goes from non-empty to empty.
	AlertOnClear bool
	Now          func() time.Time
	// Location is the zone of the wall-clock time written on ban-list
	// events, normally the zone the live log is written in (default Local).
	Location     *time.Location
}

// BanChange is the outcome of one poll.
type BanChange struct {
	Changed  bool
	Previous domain.BanSet
	Current  domain.BanSet
	Alert    *domain.Alert
}

// BanStatusPoller compares the provider's ban list with the last observed
// one and reports transitions. The previous set survives restarts through
// the state store. An alert that could not be delivered is kept and sent
// again on the next poll until it goes through or a newer transition
// replaces it.
type BanStatusPoller struct {
	deps BanPollerDeps

	mu      sync.Mutex
	prev    domain.BanSet
	loaded  bool
	pending *domain.Alert
}

func NewBanStatusPoller(deps BanPollerDeps) *BanStatusPoller {
	if deps.Observer == nil {
		deps.Observer = ports.NopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &BanStatusPoller{deps: deps}
}

// Poll queries the provider once. A provider failure or unparseable output
// is a *domain.ProviderError and leaves the remembered state unchanged.
func (p *BanStatusPoller) Poll(ctx context.Context) (BanChange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := p.deps.Provider.Name()
	current, err := p.query(ctx)
	if err != nil {
		p.deps.Observer.ObserveProviderFailure(name)
		log.Warn().Err(err).Str("error_class", "provider").Str("provider", name).Msg("Ban list query failed")
		return BanChange{}, err
	}
	p.deps.Observer.ObserveBanSet(current.Len())

	if !p.loaded {
		prev, err := p.deps.State.LoadBanState(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load previous ban state, assuming empty")
		}
		p.prev = prev
		p.loaded = true
	}

	change := BanChange{Previous: p.prev, Current: current}
	if current.Equal(p.prev) {
		if p.pending == nil {
			return change, nil
		}
		change.Alert = p.pending
		log.Info().Str("alert_id", p.pending.ID).Msg("Retrying undelivered ban alert")
		return change, p.dispatch(ctx)
	}
	change.Changed = true
	p.pending = nil

	var errs []error
	msg := BanListClearedEvent
	if !current.Empty() {
		msg = BanListEventPrefix + current.String()
	}
	ev := domain.NewEvent(p.deps.Now().In(p.deps.Location).Truncate(time.Second), msg)
	if _, err := p.deps.Store.Ingest(ctx, []domain.Event{ev}); err != nil {
		errs = append(errs, err)
	}
	if err := p.deps.State.SaveBanState(ctx, current); err != nil {
		errs = append(errs, &domain.PersistenceError{Sink: domain.SinkBanState, Op: "save", Err: err})
	}
	p.prev = current

	log.Info().
		Str("provider", name).
		Str("previous", change.Previous.String()).
		Str("current", current.String()).
		Msg("Ban list changed")

	if !current.Empty() || p.deps.AlertOnClear {
		change.Alert = banAlert(name, change.Previous, current)
		p.pending = change.Alert
		if err := p.dispatch(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return change, errors.Join(errs...)
}

// dispatch sends the pending alert and clears it once delivered.
func (p *BanStatusPoller) dispatch(ctx context.Context) error {
	if err := p.deps.Alerter.Send(ctx, p.pending); err != nil {
		return fmt.Errorf("dispatch ban alert: %w", err)
	}
	p.pending = nil
	return nil
}

func (p *BanStatusPoller) query(ctx context.Context) (domain.BanSet, error) {
	raw, err := p.deps.Provider.Status(ctx)
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return domain.BanSet{}, err
		}
		return domain.BanSet{}, &domain.ProviderError{Provider: p.deps.Provider.Name(), Err: err}
	}
	set, err := p.deps.Parse(raw)
	if err != nil {
		return domain.BanSet{}, &domain.ProviderError{Provider: p.deps.Provider.Name(), Err: err}
	}
	return set, nil
}

func banAlert(provider string, prev, cur domain.BanSet) *domain.Alert {
	if cur.Empty() {
		a := domain.NewAlert(domain.AlertKindBanList, domain.AlertLevelInfo,
			"Alert: fail2ban ban list cleared",
			fmt.Sprintf("No address is banned any more. Previously banned: %s.", prev))
		a.AddMetadata("provider", provider)
		return a
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Currently banned address(es): %s.", cur)
	if added := cur.Added(prev); len(added) > 0 {
		fmt.Fprintf(&b, "\nNewly banned: %s.", strings.Join(added, ", "))
	}
	a := domain.NewAlert(domain.AlertKindBanList, domain.AlertLevelWarning, "Alert: fail2ban ban list changed", b.String())
	a.Count = cur.Len()
	a.AddMetadata("provider", provider)
	return a
}
