// Package sink defines output backends for engine activity.
package sink

import (
	"context"

	"github.com/hazyhaar/chataug/augment/activity"
)

// Sink delivers activity records to a backend (stdout, webhook, in-process
// callback).
type Sink interface {
	Send(ctx context.Context, rec activity.Record) error
	Close() error
}
