package augment

import (
	"time"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// coalesceConfig controls how bridge batches are merged before they reach
// the engine.
type coalesceConfig struct {
	// Window is the quiet period before a flush. Default: 30ms.
	Window time.Duration
	// MaxBuffer flushes immediately when this many changes accumulate. Default: 500.
	MaxBuffer int
}

func (cc *coalesceConfig) defaults() {
	if cc.Window <= 0 {
		cc.Window = 30 * time.Millisecond
	}
	if cc.MaxBuffer <= 0 {
		cc.MaxBuffer = 500
	}
}

// coalescer merges the batches a streaming host emits while it renders a
// reply, so the engine runs one maintenance pass per burst. It is owned by
// the session loop and not safe for concurrent use.
type coalescer struct {
	cfg     coalesceConfig
	changes []host.Change
	timer   *time.Timer
	timerCh <-chan time.Time
	flushFn func(host.Batch)
}

func newCoalescer(cfg coalesceConfig, flushFn func(host.Batch)) *coalescer {
	cfg.defaults()
	return &coalescer{cfg: cfg, flushFn: flushFn}
}

// add buffers changes. Returns true if the buffer filled and was flushed.
func (c *coalescer) add(changes []host.Change) bool {
	if len(changes) == 0 {
		return false
	}
	c.changes = append(c.changes, changes...)

	if len(c.changes) >= c.cfg.MaxBuffer {
		c.flush()
		return true
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.NewTimer(c.cfg.Window)
	c.timerCh = c.timer.C
	return false
}

// timerC fires when the window expires. Nil while nothing is buffered.
func (c *coalescer) timerC() <-chan time.Time {
	return c.timerCh
}

// flush emits the buffered changes as one batch and resets.
func (c *coalescer) flush() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.timerCh = nil
	}
	if len(c.changes) == 0 {
		return
	}
	b := host.Batch{Changes: compress(c.changes)}
	c.changes = nil
	c.flushFn(b)
}

// compress collapses runs of identical consecutive changes. An insert and
// a remove of the same node are both kept: order matters to the echo test.
func compress(changes []host.Change) []host.Change {
	if len(changes) <= 1 {
		return changes
	}
	out := make([]host.Change, 0, len(changes))
	for _, ch := range changes {
		if n := len(out); n > 0 && out[n-1] == ch {
			continue
		}
		out = append(out, ch)
	}
	return out
}
