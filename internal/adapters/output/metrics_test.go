package output

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

func TestPrometheusMetricsObserve(t *testing.T) {
	m := NewPrometheusMetrics("")

	m.ObserveIngest(10, 7, 3, 2, 1)
	m.ObserveIngest(5, 0, 5, 0, 0)
	m.ObserveSinkFailure("snapshot")
	m.ObserveAlert(domain.NewAlert(domain.AlertKindBruteForce, domain.AlertLevelCritical, "", ""))
	m.ObserveRotation("rotated")
	m.ObserveBackup(false)
	m.ObserveBanSet(4)
	m.ObserveProviderFailure("fail2ban")
	m.ObserveTick("monitor", 20*time.Millisecond, &domain.ProviderError{Provider: "fail2ban", Err: errors.New("timeout")})

	assert.Equal(t, 15.0, testutil.ToFloat64(m.eventsParsed))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.eventsInserted))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.eventsDuplicate))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.parseErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsFiltered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkFailures.WithLabelValues("snapshot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsByKind.WithLabelValues("BRUTE_FORCE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rotations.WithLabelValues("rotated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backups.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.bannedAddresses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tickErrors.WithLabelValues("monitor", "provider")))
}

func TestPrometheusMetricsIndependentRegistries(t *testing.T) {
	a := NewPrometheusMetrics("authwatch")
	b := NewPrometheusMetrics("authwatch")
	a.ObserveBanSet(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.bannedAddresses))
}
