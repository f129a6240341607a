// Package memdom is an in-memory host document built on goquery. It stands
// in for the chat page in tests and in offline preview: the engine drives
// it through the host interfaces while callers play the host framework
// (re-rendering, enabling the submit button, focusing elsewhere).
//
// Structural changes are queued and only delivered on Flush, the way a
// MutationObserver delivers records at the next microtask checkpoint.
package memdom

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// nodeState is the live state a browser keeps outside the markup.
type nodeState struct {
	value       string
	valueSet    bool
	inputEvents int
	clicks      int
	selected    bool
}

// Document is a goquery-backed host.Document. It is not safe for
// concurrent use.
type Document struct {
	doc     *goquery.Document
	focused *html.Node
	state   map[*html.Node]*nodeState
	pending []host.Change

	handler host.Handler
	opts    host.SubscribeOptions

	onInput  func(value string)
	onSubmit func()
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, state: make(map[*html.Node]*nodeState)}, nil
}

// FromString parses s.
func FromString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// QueryFirst implements host.Document.
func (d *Document) QueryFirst(selector string) (host.Element, bool) {
	sel := d.find(selector)
	if sel.Length() == 0 {
		return nil, false
	}
	return &element{d: d, n: sel.Get(0)}, true
}

// Subscribe implements host.Document. Only one handler may subscribe.
func (d *Document) Subscribe(h host.Handler, opts host.SubscribeOptions) error {
	if d.handler != nil {
		return errors.New("memdom: already subscribed")
	}
	d.handler = h
	d.opts = opts
	d.pending = nil
	return nil
}

// OnInput registers the host's reaction to a bubbling input event, e.g.
// enabling the submit button once the value is non-empty.
func (d *Document) OnInput(fn func(value string)) { d.onInput = fn }

// OnSubmit registers the host's reaction to a submit click.
func (d *Document) OnSubmit(fn func()) { d.onSubmit = fn }

// Flush delivers queued structural changes as one batch. It reports whether
// a batch was delivered.
func (d *Document) Flush() bool {
	if len(d.pending) == 0 {
		return false
	}
	b := host.Batch{Changes: d.pending}
	d.pending = nil
	if d.handler == nil {
		return false
	}
	d.handler.OnMutations(b)
	return true
}

// Pending returns the number of undelivered changes.
func (d *Document) Pending() int { return len(d.pending) }

// Remove detaches every node matching selector, as a host re-render would.
func (d *Document) Remove(selector string) int {
	nodes := d.find(selector).Nodes
	for _, n := range nodes {
		if n.Parent == nil {
			continue
		}
		d.record(host.OpRemove, n)
		n.Parent.RemoveChild(n)
		d.forget(n)
	}
	return len(nodes)
}

// ReplaceBody swaps the body content for markup, recording every removed
// and inserted top-level node.
func (d *Document) ReplaceBody(markup string) error {
	body := d.find("body")
	if body.Length() == 0 {
		return errors.New("memdom: no body")
	}
	b := body.Get(0)
	for c := b.FirstChild; c != nil; {
		next := c.NextSibling
		d.record(host.OpRemove, c)
		b.RemoveChild(c)
		d.forget(c)
		c = next
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), b)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		b.AppendChild(n)
		d.record(host.OpInsert, n)
	}
	return nil
}

// SetHostAttr changes an attribute on the first match as the host would.
// Attribute changes are not structural and are never queued.
func (d *Document) SetHostAttr(selector, name, value string) bool {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	sel.SetAttr(name, value)
	return true
}

// RemoveHostAttr removes an attribute on the first match.
func (d *Document) RemoveHostAttr(selector, name string) bool {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	sel.RemoveAttr(name)
	return true
}

// Type simulates the user typing value into the first match.
func (d *Document) Type(selector, value string) bool {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	st := d.stateOf(sel.Get(0))
	st.value, st.valueSet = value, true
	st.inputEvents++
	if d.onInput != nil {
		d.onInput(value)
	}
	return true
}

// FocusOn moves focus to the first match, or clears it for "".
func (d *Document) FocusOn(selector string) bool {
	if selector == "" {
		d.focused = nil
		return true
	}
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	d.focused = sel.Get(0)
	return true
}

// UserClick simulates a click on the first match. Clicks inside an element
// carrying the subscribed action attribute are delivered to the handler.
func (d *Document) UserClick(selector string) bool {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	n := sel.Get(0)
	d.stateOf(n).clicks++
	if d.handler == nil || d.opts.ActionAttr == "" {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if v, ok := attr(p, d.opts.ActionAttr); ok {
			d.handler.OnClick(v)
			return true
		}
	}
	return false
}

// Key delivers a keydown to the handler and reports whether the browser
// default would have been prevented.
func (d *Document) Key(ev host.KeyEvent) (prevented bool) {
	if d.handler == nil {
		return false
	}
	chord := ev.Chord()
	for _, c := range d.opts.PreventChords {
		if c == chord {
			prevented = true
		}
	}
	d.handler.OnKey(ev)
	return prevented
}

// Count returns the number of nodes matching selector.
func (d *Document) Count(selector string) int { return d.find(selector).Length() }

// Value returns the live value of the first match.
func (d *Document) Value(selector string) string {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return d.valueOf(sel.Get(0))
}

// Attr returns an attribute of the first match.
func (d *Document) Attr(selector, name string) (string, bool) {
	return d.find(selector).First().Attr(name)
}

// InputEvents returns how many input events the first match received.
func (d *Document) InputEvents(selector string) int { return d.counter(selector, func(s *nodeState) int { return s.inputEvents }) }

// Clicks returns how many clicks the first match received.
func (d *Document) Clicks(selector string) int { return d.counter(selector, func(s *nodeState) int { return s.clicks }) }

// Selected reports whether the text of the first match was selected.
func (d *Document) Selected(selector string) bool {
	return d.counter(selector, func(s *nodeState) int {
		if s.selected {
			return 1
		}
		return 0
	}) == 1
}

// Focused reports whether the first match has focus.
func (d *Document) Focused(selector string) bool {
	sel := d.find(selector).First()
	return sel.Length() > 0 && sel.Get(0) == d.focused
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// find never fails: goquery compiles an invalid selector to a matcher that
// matches nothing.
func (d *Document) find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

func (d *Document) counter(selector string, get func(*nodeState) int) int {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return 0
	}
	st, ok := d.state[sel.Get(0)]
	if !ok {
		return 0
	}
	return get(st)
}

func (d *Document) stateOf(n *html.Node) *nodeState {
	st, ok := d.state[n]
	if !ok {
		st = &nodeState{}
		d.state[n] = st
	}
	return st
}

func (d *Document) valueOf(n *html.Node) string {
	if st, ok := d.state[n]; ok && st.valueSet {
		return st.value
	}
	if n.Data == "input" {
		v, _ := attr(n, "value")
		return v
	}
	return textContent(n)
}

// forget drops live state for a detached subtree.
func (d *Document) forget(n *html.Node) {
	delete(d.state, n)
	if d.focused == n {
		d.focused = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.forget(c)
	}
}

// record queues a change for n. Like the browser observer, only changes
// under body are reported.
func (d *Document) record(op host.Op, n *html.Node) {
	if n.Type != html.ElementNode || !underBody(n.Parent) {
		return
	}
	c := host.Change{Op: op, Tag: n.Data}
	c.ID, _ = attr(n, "id")
	if d.opts.Marker != "" {
		_, c.Own = attr(n, d.opts.Marker)
	}
	d.pending = append(d.pending, c)
}

// attached reports whether n is still part of the document tree.
func (d *Document) attached(n *html.Node) bool {
	root := d.doc.Get(0)
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func underBody(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "body" {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
