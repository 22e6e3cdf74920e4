// Package ports defines the interfaces between the ingestion core and the
// infrastructure around it (log sources, sinks, alert outputs, providers).
//
// Implementations live in internal/adapters/.
package ports

import (
	"context"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// Alerter dispatches operator alerts.
//
// Implementations:
//   - MailDispatcher: SMTP delivery of Subject/Body to the admin contact
//   - JSONAlerter: JSON lines journal on disk or stdout
//   - Fanout: delivers to several alerters, succeeds if any succeeds
//
// Thread Safety: Implementations MUST be safe for concurrent Send() calls.
type Alerter interface {
	// Send dispatches an alert to the output destination.
	//
	// Returns:
	//   - nil on success
	//   - Error if dispatch fails (caller logs it; the next tick retries
	//     whatever condition produced the alert)
	Send(ctx context.Context, alert *domain.Alert) error

	// Flush forces pending alerts to be written to destination.
	Flush() error

	// Close releases resources and flushes pending alerts.
	Close() error
}
