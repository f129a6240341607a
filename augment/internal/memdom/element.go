package memdom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// element is a host.Element over an html.Node. Every method fails with
// host.ErrAbsent once the node has been detached.
type element struct {
	d *Document
	n *html.Node
}

func (e *element) live() error {
	if !e.d.attached(e.n) {
		return host.ErrAbsent
	}
	return nil
}

func (e *element) Attr(name string) (string, bool, error) {
	if err := e.live(); err != nil {
		return "", false, err
	}
	v, ok := attr(e.n, name)
	return v, ok, nil
}

func (e *element) SetAttr(name, value string) error {
	if err := e.live(); err != nil {
		return err
	}
	for i := range e.n.Attr {
		if e.n.Attr[i].Key == name {
			e.n.Attr[i].Val = value
			return nil
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

func (e *element) Value() (string, error) {
	if err := e.live(); err != nil {
		return "", err
	}
	return e.d.valueOf(e.n), nil
}

// SetValue changes the live value only; like a browser, the markup of a
// textarea or input is left alone.
func (e *element) SetValue(v string) error {
	if err := e.live(); err != nil {
		return err
	}
	st := e.d.stateOf(e.n)
	st.value, st.valueSet = v, true
	return nil
}

func (e *element) DispatchInput() error {
	if err := e.live(); err != nil {
		return err
	}
	e.d.stateOf(e.n).inputEvents++
	if e.d.onInput != nil {
		e.d.onInput(e.d.valueOf(e.n))
	}
	return nil
}

func (e *element) Focus() error {
	if err := e.live(); err != nil {
		return err
	}
	e.d.focused = e.n
	return nil
}

func (e *element) Blur() error {
	if err := e.live(); err != nil {
		return err
	}
	if e.d.focused == e.n {
		e.d.focused = nil
	}
	return nil
}

func (e *element) SelectText() error {
	if err := e.live(); err != nil {
		return err
	}
	e.d.stateOf(e.n).selected = true
	return nil
}

func (e *element) IsActive() (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	return e.d.focused == e.n, nil
}

func (e *element) Disabled() (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	if _, ok := attr(e.n, "disabled"); ok {
		return true, nil
	}
	v, _ := attr(e.n, "aria-disabled")
	return v == "true", nil
}

func (e *element) Click() error {
	if err := e.live(); err != nil {
		return err
	}
	e.d.stateOf(e.n).clicks++
	if e.d.onSubmit != nil {
		e.d.onSubmit()
	}
	return nil
}

// InsertHTML parses fragment in the context of its future parent and
// splices it in one step, queuing one insert change per top-level element.
func (e *element) InsertHTML(pos host.Position, fragment string) error {
	if err := e.live(); err != nil {
		return err
	}

	var parent, before *html.Node
	switch pos {
	case host.BeforeBegin:
		parent, before = e.n.Parent, e.n
	case host.AfterBegin:
		parent, before = e.n, e.n.FirstChild
	case host.BeforeEnd:
		parent, before = e.n, nil
	case host.AfterEnd:
		parent, before = e.n.Parent, e.n.NextSibling
	default:
		return fmt.Errorf("memdom: unknown position %q", pos)
	}
	if parent == nil {
		return host.ErrAbsent
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("memdom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.InsertBefore(n, before)
		e.d.record(host.OpInsert, n)
	}
	return nil
}
