package augment

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/chataug/augment/internal/engine"
	"github.com/hazyhaar/chataug/augment/internal/host"
)

// ErrStopped is returned by Session calls after Stop.
var ErrStopped = errors.New("augment: session stopped")

// Session runs one engine on its own goroutine. Host events, ticks and
// deferred dispatch callbacks are queued and executed there one at a time,
// so the engine never sees concurrent calls.
type Session struct {
	id     string
	eng    *engine.Engine
	closer io.Closer
	logger *slog.Logger
	tick   time.Duration
	coal   *coalescer

	mu      sync.Mutex
	queue   []func()
	timers  map[*time.Timer]struct{}
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type sessionConfig struct {
	id       string
	doc      host.Document
	closer   io.Closer
	engine   engine.Options
	coalesce coalesceConfig
	tick     time.Duration
	logger   *slog.Logger
}

func newSession(cfg sessionConfig) *Session {
	s := &Session{
		id:     cfg.id,
		closer: cfg.closer,
		logger: cfg.logger.With("page_id", cfg.id),
		tick:   cfg.tick,
		timers: make(map[*time.Timer]struct{}),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}

	opts := cfg.engine
	opts.PageID = cfg.id
	opts.Scheduler = loopScheduler{s}
	opts.Logger = cfg.logger
	s.eng = engine.New(&serialDoc{Document: cfg.doc, s: s}, opts)
	s.coal = newCoalescer(cfg.coalesce, s.eng.OnMutations)
	return s
}

// start launches the loop and starts the engine on it.
func (s *Session) start() error {
	go s.loop()

	var err error
	if derr := s.Do(func() { _, err = s.eng.Start() }); derr != nil {
		return derr
	}
	return err
}

// ID returns the page id.
func (s *Session) ID() string { return s.id }

// Do runs fn on the session goroutine and waits for it. Callers driving a
// host document directly, such as tests and preview mode, must go through
// Do.
func (s *Session) Do(fn func()) error {
	ran := make(chan struct{})
	if !s.post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrStopped
	}
}

// Sync delivers buffered structural changes to the engine now instead of
// waiting for the coalescing window.
func (s *Session) Sync() error {
	return s.Do(s.coal.flush)
}

// Send forwards text through the page's own input and submit controls.
// It reports false when the input field is absent.
func (s *Session) Send(text string) (bool, error) {
	var ok bool
	err := s.Do(func() { ok = s.eng.Send(text) })
	return ok, err
}

// Focus moves focus to the page's input field.
func (s *Session) Focus() (bool, error) {
	var ok bool
	err := s.Do(func() { ok = s.eng.Focus() })
	return ok, err
}

// Stats returns the engine counters.
func (s *Session) Stats() engine.Stats { return s.eng.Stats() }

// Stop ends the loop, cancels pending dispatches and closes the host.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		for t := range s.timers {
			t.Stop()
		}
		s.timers = nil
		s.queue = nil
		s.mu.Unlock()

		close(s.stop)
		<-s.done

		if s.closer != nil {
			if err := s.closer.Close(); err != nil {
				s.logger.Warn("augment: close host", "error", err)
			}
		}
		s.logger.Info("augment: session stopped")
	})
}

func (s *Session) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
			s.drain()
		case <-s.coal.timerC():
			s.coal.flush()
		case <-ticker.C:
			s.eng.Tick()
		}
	}
}

// drain runs queued functions until the queue is empty, including those
// queued by the functions themselves.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

// post queues fn for the loop. It never blocks.
func (s *Session) post(fn func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// loopScheduler defers engine callbacks onto the loop.
type loopScheduler struct{ s *Session }

func (ls loopScheduler) AfterFunc(d time.Duration, fn func()) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.post(fn)
	})
	s.timers[t] = struct{}{}
}

// serialDoc routes host events through the session queue before they reach
// the engine. Mutation batches additionally pass through the coalescer.
type serialDoc struct {
	host.Document
	s *Session
}

func (d *serialDoc) Subscribe(h host.Handler, opts host.SubscribeOptions) error {
	return d.Document.Subscribe(loopHandler{s: d.s, h: h}, opts)
}

type loopHandler struct {
	s *Session
	h host.Handler
}

func (l loopHandler) OnReady(token string) {
	l.s.post(func() { l.h.OnReady(token) })
}

func (l loopHandler) OnMutations(b host.Batch) {
	l.s.post(func() { l.s.coal.add(b.Changes) })
}

func (l loopHandler) OnKey(ev host.KeyEvent) bool {
	return l.s.post(func() { l.h.OnKey(ev) })
}

func (l loopHandler) OnClick(action string) {
	l.s.post(func() { l.h.OnClick(action) })
}
