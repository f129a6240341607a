// Package engine is the self-healing augmentation core. It is synchronous
// and single-threaded: the caller owns the goroutine and serialises every
// host event, tick and deferred callback onto it.
package engine

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/chataug/augment/activity"
	"github.com/hazyhaar/chataug/augment/internal/host"
)

// Options configures an Engine.
type Options struct {
	PageID          string
	DispatchDelay   time.Duration
	PlaceholderText string
	FocusOnReady    bool
	Selectors       map[string][]string
	Catalog         []QuickAction // nil = Catalog
	Scheduler       Scheduler
	Report          func(activity.Record)
	Logger          *slog.Logger
}

// Stats are point-in-time counters.
type Stats struct {
	Batches      uint64 `json:"batches"`
	SelfEchoes   uint64 `json:"self_echoes"`
	Restorations uint64 `json:"restorations"`
	Dispatches   uint64 `json:"dispatches"`
	Dropped      uint64 `json:"dropped"`
	Shortcuts    uint64 `json:"shortcuts"`
}

// Engine wires the components around one host document.
type Engine struct {
	opts    Options
	doc     host.Document
	res     *Resolver
	inject  *Injector
	place   *Placeholder
	focus   *Focus
	keys    *Shortcuts
	send    *Dispatcher
	watch   *Watcher
	augs    []Augmentation
	catalog []QuickAction
	logger  *slog.Logger

	started  bool
	docToken string

	batches      atomic.Uint64
	echoes       atomic.Uint64
	restorations atomic.Uint64
	dispatches   atomic.Uint64
	dropped      atomic.Uint64
	shortcuts    atomic.Uint64
}

// New creates an Engine for doc. Nothing touches the document until Start.
func New(doc host.Document, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = Catalog
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler{}
	}
	logger := opts.Logger.With("page_id", opts.PageID)

	res := NewResolver(doc, opts.Selectors)
	e := &Engine{
		opts:    opts,
		doc:     doc,
		res:     res,
		inject:  NewInjector(res, logger),
		place:   NewPlaceholder(res, opts.PlaceholderText, logger),
		focus:   &Focus{res: res, logger: logger},
		keys:    &Shortcuts{res: res, logger: logger},
		catalog: opts.Catalog,
		logger:  logger,
		augs:    []Augmentation{StyleAugmentation(), PanelAugmentation(opts.Catalog)},
	}
	e.send = &Dispatcher{
		res:      res,
		sched:    opts.Scheduler,
		delay:    opts.DispatchDelay,
		logger:   logger,
		onSubmit: e.onSubmit,
	}
	e.watch = &Watcher{doc: doc, maintain: e.Maintain}
	return e
}

// Start subscribes to the document and runs every maintenance component
// once. A second call is a no-op and returns false.
func (e *Engine) Start() (bool, error) {
	if e.started {
		e.logger.Debug("engine: already started")
		return false, nil
	}
	ok, err := e.watch.Start(e, host.SubscribeOptions{
		PreventChords: PreventChords(),
		Marker:        MarkerAttr,
		ActionAttr:    ActionAttr,
	})
	if err != nil {
		return false, err
	}
	e.started = ok
	e.logger.Info("engine: observing", "state", e.watch.State())

	e.Maintain("start")
	if e.opts.FocusOnReady {
		e.focus.Focus()
	}
	return true, nil
}

// Maintain re-applies every idempotent augmentation.
func (e *Engine) Maintain(reason string) {
	if e.place.Maintain() {
		e.emit(activity.KindPlaceholderSet, RoleInput.String())
	}
	for _, a := range e.augs {
		switch r := e.inject.EnsurePresent(a); r {
		case Inserted:
			e.logger.Info("engine: augmentation injected", "id", a.ID, "reason", reason)
			e.emit(activity.KindInjected, a.ID)
		case Restored:
			e.restorations.Add(1)
			e.logger.Info("engine: augmentation restored", "id", a.ID, "reason", reason)
			e.emit(activity.KindRestored, a.ID)
		case Deferred, Failed:
			e.logger.Debug("engine: augmentation pending", "id", a.ID, "result", r, "reason", reason)
		}
	}
}

// Tick is the timer fallback: the placeholder only.
func (e *Engine) Tick() {
	if !e.started {
		return
	}
	if e.place.Maintain() {
		e.emit(activity.KindPlaceholderSet, RoleInput.String())
	}
}

// Focus moves input focus to the chat input.
func (e *Engine) Focus() bool { return e.focus.Focus() }

// Send forwards text through the host input and submit controls.
func (e *Engine) Send(text string) bool { return e.send.Send(text) }

// OnReady runs a maintenance pass when the host reports a new document.
func (e *Engine) OnReady(docToken string) {
	if !e.started || docToken == e.docToken {
		return
	}
	// The first token names the document Start already ran on. Any later
	// one is a fresh document: its first insertions are not restorations.
	if e.docToken != "" {
		e.inject.Reset()
	}
	e.docToken = docToken
	e.emit(activity.KindReady, docToken)
	e.Maintain("ready")
	if e.opts.FocusOnReady {
		e.focus.Focus()
	}
}

// OnMutations is the self-healing trigger.
func (e *Engine) OnMutations(b host.Batch) {
	switch e.watch.React(b) {
	case Maintained:
		e.batches.Add(1)
	case Echo:
		e.batches.Add(1)
		e.echoes.Add(1)
	}
}

// OnKey runs the shortcut bound to ev.
func (e *Engine) OnKey(ev host.KeyEvent) bool {
	if !e.started {
		return false
	}
	b, ran := e.keys.Handle(ev)
	if ran {
		e.shortcuts.Add(1)
		e.emit(activity.KindShortcut, string(b.Action))
	}
	return ran
}

// OnClick handles activation of a quick-action button.
func (e *Engine) OnClick(action string) {
	i, err := strconv.Atoi(action)
	if err != nil || i < 0 || i >= len(e.catalog) {
		e.logger.Debug("engine: unknown quick action", "action", action)
		return
	}
	e.Send(e.catalog[i].Query)
}

// State returns the watcher state.
func (e *Engine) State() State { return e.watch.State() }

// Stats returns the current counters. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		Batches:      e.batches.Load(),
		SelfEchoes:   e.echoes.Load(),
		Restorations: e.restorations.Load(),
		Dispatches:   e.dispatches.Load(),
		Dropped:      e.dropped.Load(),
		Shortcuts:    e.shortcuts.Load(),
	}
}

func (e *Engine) onSubmit(text string, sent bool) {
	if sent {
		e.dispatches.Add(1)
		e.emit(activity.KindDispatched, text)
		return
	}
	e.dropped.Add(1)
	e.emit(activity.KindDropped, text)
}

func (e *Engine) emit(kind activity.Kind, subject string) {
	if e.opts.Report != nil {
		e.opts.Report(activity.New(e.opts.PageID, kind, subject))
	}
}

// timerScheduler runs callbacks on the timer's own goroutine. Callers that
// share the document with other goroutines must pass a serialising
// Scheduler instead.
type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

var _ host.Handler = (*Engine)(nil)
