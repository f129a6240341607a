// Package rodhost implements the host interfaces over a live Chrome tab
// driven by rod. Structural changes, keystrokes and quick-action clicks are
// observed by an injected script and delivered back through a CDP runtime
// binding.
package rodhost

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

const bindingName = "__chataug_binding"

//go:embed bridge.js
var bridgeJS string

// Document is a host.Document backed by a rod page.
type Document struct {
	root   *rod.Page
	page   *rod.Page
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	chords []string

	mu         sync.Mutex
	subscribed bool
	listening  bool
	removeInit func() error
	done       chan struct{}
}

// NewDocument wraps page. chords lists every chord the key listener should
// forward; the rest are left to the page.
func NewDocument(ctx context.Context, page *rod.Page, chords []string, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Document{
		root:   page,
		page:   page.Context(ctx),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		chords: chords,
		done:   make(chan struct{}),
	}
}

// QueryFirst implements host.Document.
func (d *Document) QueryFirst(selector string) (host.Element, bool) {
	has, el, err := d.page.Has(selector)
	if err != nil {
		if !isAbsent(err) {
			d.logger.Debug("rodhost: query", "selector", selector, "error", err)
		}
		return nil, false
	}
	if !has {
		return nil, false
	}
	return &element{el: el}, true
}

type bridgeConfig struct {
	Binding       string   `json:"binding"`
	Marker        string   `json:"marker"`
	ActionAttr    string   `json:"actionAttr"`
	PreventChords []string `json:"preventChords"`
	Chords        []string `json:"chords"`
}

// Subscribe installs the bridge on the current document and on every
// document the tab loads afterwards.
func (d *Document) Subscribe(h host.Handler, opts host.SubscribeOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subscribed {
		return errors.New("rodhost: already subscribed")
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(d.page); err != nil {
		return fmt.Errorf("rodhost: add binding: %w", err)
	}

	go d.listen(h)
	d.listening = true

	cfg, err := json.Marshal(bridgeConfig{
		Binding:       bindingName,
		Marker:        opts.Marker,
		ActionAttr:    opts.ActionAttr,
		PreventChords: opts.PreventChords,
		Chords:        d.chords,
	})
	if err != nil {
		return fmt.Errorf("rodhost: bridge config: %w", err)
	}
	install := "(" + strings.TrimSpace(bridgeJS) + ")(" + string(cfg) + ")"

	// Registered on the uncancelled page so Close can still remove it.
	remove, err := d.root.EvalOnNewDocument(install)
	if err != nil {
		return fmt.Errorf("rodhost: install on new document: %w", err)
	}
	d.removeInit = remove

	if _, err := d.page.Eval("() => " + install); err != nil {
		return fmt.Errorf("rodhost: install bridge: %w", err)
	}

	d.subscribed = true
	d.logger.Debug("rodhost: bridge installed")
	return nil
}

type bridgeMessage struct {
	Type    string        `json:"type"`
	Doc     string        `json:"doc"`
	Changes []host.Change `json:"changes"`
	Key     string        `json:"key"`
	Mod     bool          `json:"mod"`
	Shift   bool          `json:"shift"`
	Alt     bool          `json:"alt"`
	Action  string        `json:"action"`
}

// listen turns binding calls into handler calls. It runs until the
// document is closed.
func (d *Document) listen(h host.Handler) {
	defer close(d.done)
	d.page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var msg bridgeMessage
		if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
			d.logger.Warn("rodhost: parse binding payload", "error", err)
			return
		}
		switch msg.Type {
		case "ready":
			h.OnReady(msg.Doc)
		case "mutations":
			h.OnMutations(host.Batch{Changes: msg.Changes})
		case "key":
			h.OnKey(host.KeyEvent{Key: msg.Key, Mod: msg.Mod, Shift: msg.Shift, Alt: msg.Alt})
		case "click":
			h.OnClick(msg.Action)
		default:
			d.logger.Debug("rodhost: unknown bridge message", "type", msg.Type)
		}
	})()
}

// Close stops the listener and removes the new-document hook. The page
// itself is left open.
func (d *Document) Close() error {
	d.mu.Lock()
	remove, listening := d.removeInit, d.listening
	d.mu.Unlock()

	d.cancel()
	if listening {
		<-d.done
	}
	if remove != nil {
		return remove()
	}
	return nil
}

// isAbsent reports whether err means the node or its execution context
// is gone.
func isAbsent(err error) bool {
	if err == nil {
		return false
	}
	var notFound *rod.ObjectNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	if errors.Is(err, cdp.ErrCtxNotFound) || errors.Is(err, cdp.ErrObjNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "Execution context was destroyed") ||
		strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "Cannot find context")
}

// wrap maps vanished-node failures to host.ErrAbsent.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if isAbsent(err) {
		return fmt.Errorf("rodhost: %s: %w", op, host.ErrAbsent)
	}
	return fmt.Errorf("rodhost: %s: %w", op, err)
}
