package augment

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/chataug/augment/internal/memdom"
)

// Preview is an in-memory chat page under augmentation. It renders what a
// browser would show after the engine ran, without a browser.
type Preview struct {
	s   *Session
	doc *memdom.Document
}

// Preview parses r and attaches an engine to it under id.
func (a *Augmenter) Preview(id string, r io.Reader, selectors map[string][]string) (*Preview, error) {
	doc, err := memdom.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("augment: parse preview: %w", err)
	}
	s, err := a.AttachDocument(id, doc, selectors)
	if err != nil {
		return nil, err
	}
	return &Preview{s: s, doc: doc}, nil
}

// Session returns the preview's session.
func (p *Preview) Session() *Session { return p.s }

// Reload swaps the body for the body of r, the way a client-side re-render
// would, and lets the engine heal before returning. The head is kept.
func (p *Preview) Reload(r io.Reader) error {
	next, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("augment: parse reload: %w", err)
	}
	body, err := next.Find("body").Html()
	if err != nil {
		return fmt.Errorf("augment: reload body: %w", err)
	}

	var rerr error
	if err := p.s.Do(func() {
		if rerr = p.doc.ReplaceBody(body); rerr == nil {
			p.doc.Flush()
		}
	}); err != nil {
		return err
	}
	if rerr != nil {
		return fmt.Errorf("augment: reload: %w", rerr)
	}
	return p.Settle()
}

// Settle delivers pending structural changes until the document is quiet.
func (p *Preview) Settle() error {
	for i := 0; i < 8; i++ {
		if err := p.s.Sync(); err != nil {
			return err
		}
		var more bool
		if err := p.s.Do(func() { more = p.doc.Flush() }); err != nil {
			return err
		}
		if !more {
			return p.s.Sync()
		}
	}
	return nil
}

// Render writes the current document.
func (p *Preview) Render(w io.Writer) error {
	var out string
	var rerr error
	if err := p.s.Do(func() { out, rerr = p.doc.HTML() }); err != nil {
		return err
	}
	if rerr != nil {
		return rerr
	}
	_, err := io.WriteString(w, out)
	return err
}

// Click simulates a user click on the first element matching selector.
func (p *Preview) Click(selector string) (bool, error) {
	var ok bool
	err := p.s.Do(func() { ok = p.doc.UserClick(selector) })
	if err != nil {
		return false, err
	}
	return ok, p.s.Do(func() {})
}

// Value returns the live value of the first element matching selector.
func (p *Preview) Value(selector string) (string, error) {
	var v string
	err := p.s.Do(func() { v = p.doc.Value(selector) })
	return v, err
}
