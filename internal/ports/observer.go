package ports

import (
	"time"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// PipelineObserver receives counters from the core. Implemented by the
// Prometheus adapter and the health checker.
//
// Thread Safety: Implementations MUST be safe for concurrent calls.
type PipelineObserver interface {
	// ObserveIngest records one ingestion batch outcome.
	ObserveIngest(parsed, inserted, duplicates, parseErrors, filtered int)

	// ObserveSinkFailure records a failed write to the named sink.
	ObserveSinkFailure(sink string)

	ObserveAlert(alert *domain.Alert)

	// ObserveRotation records a rotation attempt; result is "rotated",
	// "skipped" or "failed".
	ObserveRotation(result string)

	ObserveBackup(ok bool)

	ObserveBanSet(size int)

	ObserveProviderFailure(provider string)

	// ObserveTick records one scheduler tick of the named unit.
	ObserveTick(unit string, duration time.Duration, err error)
}

// NopObserver discards every observation.
type NopObserver struct{}

func (NopObserver) ObserveIngest(int, int, int, int, int) {}
func (NopObserver) ObserveSinkFailure(string) {}
func (NopObserver) ObserveAlert(*domain.Alert) {}
func (NopObserver) ObserveRotation(string) {}
func (NopObserver) ObserveBackup(bool) {}
func (NopObserver) ObserveBanSet(int) {}
func (NopObserver) ObserveProviderFailure(string) {}
func (NopObserver) ObserveTick(string, time.Duration, error) {}
