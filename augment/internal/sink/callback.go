package sink

import (
	"context"

	"github.com/hazyhaar/chataug/augment/activity"
)

// Func is called for each record, in-process.
type Func func(ctx context.Context, rec activity.Record) error

// Callback delivers records as plain function calls.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, rec activity.Record) error {
	if c.fn != nil {
		return c.fn(ctx, rec)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
