// Package host defines the boundary between the augmentation engine and the
// chat page it decorates. Two implementations exist: rodhost drives a live
// Chrome tab, memdom keeps an in-memory goquery document.
//
// Element values are never owned by the engine. The host may replace the
// underlying node at any time, so callers re-resolve on every use and treat
// ErrAbsent as a normal outcome.
package host

import "errors"

// ErrAbsent reports that a host element could not be resolved or is no
// longer attached. It is the only failure the engine recognises.
var ErrAbsent = errors.New("host: element absent")

// Position is an insertAdjacentHTML position relative to an anchor element.
type Position string

const (
	BeforeBegin Position = "beforebegin"
	AfterBegin  Position = "afterbegin"
	BeforeEnd   Position = "beforeend"
	AfterEnd    Position = "afterend"
)

// Element is a transient reference to a host node.
type Element interface {
	Attr(name string) (string, bool, error)
	SetAttr(name, value string) error
	Value() (string, error)
	SetValue(v string) error
	// DispatchInput emits a bubbling "input" event so the host framework's
	// state binding sees the new value as if it had been typed.
	DispatchInput() error
	Focus() error
	Blur() error
	SelectText() error
	IsActive() (bool, error)
	Disabled() (bool, error)
	Click() error
	// InsertHTML inserts fragment relative to the element in a single DOM
	// mutation.
	InsertHTML(pos Position, fragment string) error
}

// Document is the page-level entry point.
type Document interface {
	// QueryFirst returns the first element matching selector. Errors and
	// "no match" both return ok=false.
	QueryFirst(selector string) (Element, bool)
	// Subscribe installs the structural observer and the key/click
	// listeners, delivering events to h. Callers must invoke it at most
	// once per document handle.
	Subscribe(h Handler, opts SubscribeOptions) error
}

// Handler receives host events. Implementations are invoked from a single
// goroutine at a time.
type Handler interface {
	OnReady(docToken string)
	OnMutations(b Batch)
	// OnKey returns true when the chord was handled.
	OnKey(ev KeyEvent) bool
	OnClick(action string)
}

// SubscribeOptions tells the host which chords must have their browser
// default suppressed synchronously, and which attribute marks injected
// subtrees.
type SubscribeOptions struct {
	PreventChords []string
	Marker        string
	ActionAttr    string
}
