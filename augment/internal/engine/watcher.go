package engine

import (
	"fmt"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// State is the watcher lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateObserving           // terminal for the document handle's lifetime
)

func (s State) String() string {
	if s == StateObserving {
		return "observing"
	}
	return "uninitialized"
}

// Watcher owns the single structural-change subscription. Each foreign
// batch triggers one maintenance pass; batches that only echo the engine's
// own insertions are dropped so a restore cannot feed itself.
type Watcher struct {
	doc      host.Document
	state    State
	running  bool
	maintain func(reason string)
}

// Reaction is what the watcher did with a batch.
type Reaction int

const (
	Ignored    Reaction = iota // not observing, empty, or re-entrant
	Echo                       // only our own insertions
	Maintained                 // maintenance pass ran
)

// Start subscribes h to the document. It returns false without touching the
// document when the watcher is already observing.
func (w *Watcher) Start(h host.Handler, opts host.SubscribeOptions) (bool, error) {
	if w.state == StateObserving {
		return false, nil
	}
	if err := w.doc.Subscribe(h, opts); err != nil {
		return false, fmt.Errorf("engine: subscribe: %w", err)
	}
	w.state = StateObserving
	return true, nil
}

// React handles one batch.
func (w *Watcher) React(b host.Batch) Reaction {
	if w.state != StateObserving || b.Len() == 0 {
		return Ignored
	}
	if b.SelfEcho() {
		return Echo
	}
	// A host delivering synchronously from inside our own insertion would
	// otherwise recurse.
	if w.running {
		return Ignored
	}
	w.running = true
	defer func() { w.running = false }()
	w.maintain("mutation")
	return Maintained
}

// State returns the current lifecycle state.
func (w *Watcher) State() State { return w.state }
