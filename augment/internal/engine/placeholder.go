package engine

import "log/slog"

// Placeholder sets guidance text on the input field once. The marker
// attribute, not the field's value, decides whether it already ran: the
// host clears the value on submit and must not make us overwrite what the
// user typed since.
type Placeholder struct {
	res    *Resolver
	text   string
	logger *slog.Logger
}

// NewPlaceholder creates a Placeholder maintainer.
func NewPlaceholder(res *Resolver, text string, logger *slog.Logger) *Placeholder {
	return &Placeholder{res: res, text: text, logger: logger}
}

// Maintain marks the input if present and unmarked. It reports whether it
// wrote anything.
func (p *Placeholder) Maintain() bool {
	el, ok := p.res.Resolve(RoleInput)
	if !ok {
		return false
	}
	_, marked, err := el.Attr(PlaceholderMark)
	if err != nil || marked {
		return false
	}
	if err := el.SetAttr("placeholder", p.text); err != nil {
		p.logger.Debug("engine: set placeholder", "error", err)
		return false
	}
	if err := el.SetAttr(PlaceholderMark, "1"); err != nil {
		p.logger.Debug("engine: mark placeholder", "error", err)
		return false
	}
	return true
}

// Focus gives input focus to the chat input.
type Focus struct {
	res    *Resolver
	logger *slog.Logger
}

// Focus resolves the input and focuses it. Safe to call redundantly.
func (f *Focus) Focus() bool {
	el, ok := f.res.Resolve(RoleInput)
	if !ok {
		return false
	}
	if err := el.Focus(); err != nil {
		f.logger.Debug("engine: focus input", "error", err)
		return false
	}
	return true
}
