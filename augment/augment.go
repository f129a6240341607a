// Package augment decorates a third-party chat page with a quick-action
// panel, input guidance and keyboard shortcuts, and keeps them in place
// while the page's framework re-renders.
//
// An Augmenter owns the browser and one Session per page. Each Session
// runs a self-healing engine on its own goroutine; activity records are
// fanned out to sinks (stdout, webhook, callback).
package augment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/chataug/augment/activity"
	"github.com/hazyhaar/chataug/augment/internal/browser"
	"github.com/hazyhaar/chataug/augment/internal/config"
	"github.com/hazyhaar/chataug/augment/internal/engine"
	"github.com/hazyhaar/chataug/augment/internal/host"
	"github.com/hazyhaar/chataug/augment/internal/rodhost"
	"github.com/hazyhaar/chataug/augment/internal/sink"
)

const reportBuffer = 256

// Augmenter is the top-level orchestrator.
type Augmenter struct {
	cfg    *config.Config
	mgr    *browser.Manager
	sinkR  *sink.Router
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	stopped  bool

	records    chan activity.Record
	reportDone chan struct{}
	dropped    atomic.Uint64
}

// New creates an Augmenter. cfg may be nil for defaults.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Augmenter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Defaults()
	} else {
		cfg.ApplyDefaults()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headless:         cfg.Browser.Mode == "headless",
		UseXvfb:          cfg.Browser.UseXvfb,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		ProfileDir:       cfg.Browser.ProfileDir,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})

	a := &Augmenter{
		cfg:        cfg,
		mgr:        mgr,
		sinkR:      sink.NewRouter(logger, sinks...),
		logger:     logger,
		sessions:   make(map[string]*Session),
		records:    make(chan activity.Record, reportBuffer),
		reportDone: make(chan struct{}),
	}
	go a.report()
	return a
}

// Start launches the browser and attaches every configured page. A page
// that fails to open is logged and skipped.
func (a *Augmenter) Start(ctx context.Context) error {
	if _, err := a.mgr.Start(ctx); err != nil {
		return fmt.Errorf("augment: start browser: %w", err)
	}
	for _, p := range a.cfg.Pages {
		if _, err := a.AttachPage(ctx, p); err != nil {
			a.logger.Error("augment: failed to attach page", "url", p.URL, "error", err)
		}
	}
	return nil
}

// AttachPage opens pageCfg.URL in a new tab and augments it.
func (a *Augmenter) AttachPage(ctx context.Context, pageCfg config.PageConfig) (*Session, error) {
	tab, err := browser.OpenTab(ctx, a.mgr, pageCfg.URL, pageCfg.ID)
	if err != nil {
		return nil, fmt.Errorf("augment: open tab: %w", err)
	}
	doc := rodhost.NewDocument(ctx, tab.Page, engine.Chords(), a.logger)

	s, err := a.attach(pageCfg.ID, doc, pageCfg.Selectors, closers{doc, tab})
	if err != nil {
		return nil, err
	}
	a.logger.Info("augment: augmenting page", "url", pageCfg.URL, "id", pageCfg.ID)
	return s, nil
}

// AttachDocument augments an already-open host document, e.g. an in-memory
// one. selectors are tried before the built-in ones, keyed by role.
func (a *Augmenter) AttachDocument(id string, doc host.Document, selectors map[string][]string) (*Session, error) {
	return a.attach(id, doc, selectors, nil)
}

// attach owns closer: it is closed on every failure path.
func (a *Augmenter) attach(id string, doc host.Document, selectors map[string][]string, closer io.Closer) (*Session, error) {
	fail := func(err error) (*Session, error) {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	for role := range selectors {
		if !engine.KnownRole(role) {
			return fail(fmt.Errorf("augment: unknown selector role %q", role))
		}
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return fail(ErrStopped)
	}
	if _, dup := a.sessions[id]; dup {
		a.mu.Unlock()
		return fail(fmt.Errorf("augment: page %q already attached", id))
	}
	s := newSession(sessionConfig{
		id:     id,
		doc:    doc,
		closer: closer,
		engine: engine.Options{
			DispatchDelay:   a.cfg.Augment.DispatchDelay,
			PlaceholderText: a.cfg.Augment.PlaceholderText,
			FocusOnReady:    *a.cfg.Augment.FocusOnReady,
			Selectors:       selectors,
			Report:          a.enqueue,
		},
		coalesce: coalesceConfig{
			Window:    a.cfg.Coalesce.Window,
			MaxBuffer: a.cfg.Coalesce.MaxBuffer,
		},
		tick:   a.cfg.Augment.PlaceholderInterval,
		logger: a.logger,
	})
	a.sessions[id] = s
	a.mu.Unlock()

	if err := s.start(); err != nil {
		s.Stop()
		a.mu.Lock()
		delete(a.sessions, id)
		a.mu.Unlock()
		return nil, fmt.Errorf("augment: start %s: %w", id, err)
	}
	return s, nil
}

// Session returns the session for a page id.
func (a *Augmenter) Session(id string) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	return s, ok
}

// Detach stops augmenting one page.
func (a *Augmenter) Detach(id string) bool {
	a.mu.Lock()
	s, ok := a.sessions[id]
	delete(a.sessions, id)
	a.mu.Unlock()
	if ok {
		s.Stop()
	}
	return ok
}

// Stats returns per-page engine counters.
func (a *Augmenter) Stats() map[string]engine.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]engine.Stats, len(a.sessions))
	for id, s := range a.sessions {
		out[id] = s.Stats()
	}
	return out
}

// DroppedRecords is the number of activity records discarded because the
// sinks fell behind.
func (a *Augmenter) DroppedRecords() uint64 { return a.dropped.Load() }

// Stop stops every session, flushes pending activity to the sinks, then
// closes the sinks and the browser.
func (a *Augmenter) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	sessions := a.sessions
	a.sessions = make(map[string]*Session)
	a.mu.Unlock()

	for id, s := range sessions {
		s.Stop()
		a.logger.Info("augment: detached page", "id", id)
	}

	close(a.records)
	<-a.reportDone

	a.sinkR.Close()
	a.mgr.Close()
}

// enqueue is called from session loops. It never blocks a loop on a slow
// sink.
func (a *Augmenter) enqueue(rec activity.Record) {
	select {
	case a.records <- rec:
	default:
		if a.dropped.Add(1) == 1 {
			a.logger.Warn("augment: activity buffer full, dropping records")
		}
	}
}

func (a *Augmenter) report() {
	defer close(a.reportDone)
	ctx := context.Background()
	for rec := range a.records {
		a.sinkR.Send(ctx, rec)
	}
}

// closers closes in order, returning the first error.
type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
