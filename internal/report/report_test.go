package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/detection"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

type staticStore struct {
	ports.EventStore
	events []domain.Event
}

func (s staticStore) Count(context.Context) (int, error) { return len(s.events), nil }

func (s staticStore) Recent(_ context.Context, n int) ([]domain.Event, error) {
	if n > len(s.events) {
		n = len(s.events)
	}
	return s.events[:n], nil
}

type staticBans struct{ set domain.BanSet }

func (b staticBans) LoadBanState(context.Context) (domain.BanSet, error) { return b.set, nil }

func (b staticBans) SaveBanState(context.Context, domain.BanSet) error { return nil }

func TestBuildCountsSources(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []domain.Event
	for i := range 3 {
		events = append(events, domain.NewEvent(ts.Add(time.Duration(i)*time.Second), "Failed password for root from 10.0.0.5"))
	}
	events = append(events,
		domain.NewEvent(ts, "Failed password for admin from 10.0.0.9"),
		domain.NewEvent(ts, "Accepted password for alice from 192.0.2.7"),
	)

	s, err := Build(context.Background(), staticStore{events: events}, Options{
		Recent:    50,
		Threshold: 3,
		Matcher:   detection.NewFailureDetector(3),
		Bans:      staticBans{set: domain.NewBanSet("10.0.0.5")},
		Now:       func() time.Time { return ts },
	})
	require.NoError(t, err)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, []SourceCount{{"10.0.0.5", 3}, {"10.0.0.9", 1}}, s.TopSources)
	assert.Equal(t, []string{"10.0.0.5"}, s.Bans.Addrs())
}

func TestRenderContainsSections(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Summary{
		Generated:  ts,
		Total:      2,
		Recent:     []domain.Event{domain.NewEvent(ts, "Failed password for root from 10.0.0.5\x1b[2J")},
		TopSources: []SourceCount{{"10.0.0.5", 1}},
		Threshold:  5,
		Bans:       domain.NewBanSet("1.2.3.4"),
	}

	out := Render(s, 100)
	assert.Contains(t, out, "Stored events")
	assert.Contains(t, out, "1.2.3.4")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "2024-01-01 00:00:00")
	assert.False(t, strings.Contains(out, "\x1b[2J"), "control sequences from log data must not reach the terminal")
}

func TestRenderEmpty(t *testing.T) {
	out := Render(Summary{}, 60)
	assert.Contains(t, out, "no events stored")
	assert.Contains(t, out, "no failed logins")
	assert.Contains(t, out, "none")
}
