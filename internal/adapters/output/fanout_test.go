package output

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

type brokenAlerter struct{}

func (brokenAlerter) Send(context.Context, *domain.Alert) error {
	return errors.New("smtp unreachable")
}

func (brokenAlerter) Flush() error { return nil }

func (brokenAlerter) Close() error { return nil }

type sliceAlerter struct{ sent []*domain.Alert }

func (s *sliceAlerter) Send(_ context.Context, a *domain.Alert) error {
	s.sent = append(s.sent, a)
	return nil
}

func (s *sliceAlerter) Flush() error { return nil }

func (s *sliceAlerter) Close() error { return nil }

type countingObserver struct {
	ports.NopObserver
	alerts int
}

func (c *countingObserver) ObserveAlert(*domain.Alert) { c.alerts++ }

func TestFanoutPartialFailureSucceeds(t *testing.T) {
	mem := &sliceAlerter{}
	obs := &countingObserver{}
	f := NewFanout(obs, &brokenAlerter{}, mem)

	alert := domain.NewAlert(domain.AlertKindBruteForce, domain.AlertLevelWarning, "s", "b")
	require.NoError(t, f.Send(context.Background(), alert))

	assert.Len(t, mem.sent, 1)
	assert.Equal(t, 1, obs.alerts)
}

func TestFanoutAllFail(t *testing.T) {
	obs := &countingObserver{}
	f := NewFanout(obs, &brokenAlerter{}, &brokenAlerter{})

	err := f.Send(context.Background(), domain.NewAlert(domain.AlertKindBruteForce, domain.AlertLevelWarning, "s", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp unreachable")
	assert.Zero(t, obs.alerts)

	assert.NoError(t, f.Flush())
	assert.NoError(t, f.Close())
}
