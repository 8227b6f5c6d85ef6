// Package feed defines the change feed contract consumed by the realtime
// pipeline, plus an optional script filter applied before classification.
package feed

import (
	"context"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

// Feed delivers row-change notifications for subscribed tables. Delivery
// is at-least-once and batches are roughly chronological; no ordering is
// guaranteed across reconnects. Reconnection policy belongs to the feed
// implementation, not its consumers.
type Feed interface {
	// Subscribe opens a stream of event batches for the table, limited to
	// the given event types. The channel closes when the transport ends
	// the stream; transient errors are handled internally.
	Subscribe(ctx context.Context, table string, types []models.EventType) (<-chan models.EventBatch, error)

	// Unsubscribe releases the table subscription. A no-op for tables
	// without one.
	Unsubscribe(table string) error
}
