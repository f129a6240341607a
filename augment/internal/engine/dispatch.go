package engine

import (
	"log/slog"
	"time"
)

// Scheduler runs fn after d on the engine's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Dispatcher forwards text through the host's own input and submit path:
// set value, bubbling input event, focus, then submit after a bounded
// delay if the submit control is present and enabled.
type Dispatcher struct {
	res    *Resolver
	sched  Scheduler
	delay  time.Duration
	logger *slog.Logger

	// onSubmit receives true when the submit click happened.
	onSubmit func(text string, sent bool)
}

// Send writes text into the input field. It returns false when the input
// is absent; the submit outcome is reported later through onSubmit.
func (d *Dispatcher) Send(text string) bool {
	el, ok := d.res.Resolve(RoleInput)
	if !ok {
		return false
	}
	if err := el.SetValue(text); err != nil {
		d.logger.Debug("engine: set input value", "error", err)
		return false
	}
	if err := el.DispatchInput(); err != nil {
		d.logger.Debug("engine: dispatch input event", "error", err)
	}
	if err := el.Focus(); err != nil {
		d.logger.Debug("engine: focus input", "error", err)
	}

	d.sched.AfterFunc(d.delay, func() { d.submit(text) })
	return true
}

func (d *Dispatcher) submit(text string) {
	sent := clickIfEnabled(d.res, d.logger)
	if !sent {
		d.logger.Debug("engine: submit unavailable after delay, message not sent", "delay", d.delay)
	}
	if d.onSubmit != nil {
		d.onSubmit(text, sent)
	}
}

// clickIfEnabled clicks the submit control when present and enabled.
func clickIfEnabled(res *Resolver, logger *slog.Logger) bool {
	btn, ok := res.Resolve(RoleSubmit)
	if !ok {
		return false
	}
	disabled, err := btn.Disabled()
	if err != nil || disabled {
		return false
	}
	if err := btn.Click(); err != nil {
		logger.Debug("engine: click submit", "error", err)
		return false
	}
	return true
}
