package engine

import (
	"github.com/hazyhaar/chataug/augment/internal/host"
)

// Role is the structural role of a host element.
type Role string

const (
	RoleInput    Role = "input"
	RoleSubmit   Role = "submit"
	RoleMessages Role = "messages"
	RoleComposer Role = "composer"
	RoleHead     Role = "head"
)

func (r Role) String() string { return string(r) }

// defaultSelectors locate host elements by structure rather than by the
// host's generated ids, which change between releases.
var defaultSelectors = map[Role][]string{
	RoleInput: {
		`textarea`,
		`[contenteditable="true"][role="textbox"]`,
		`[contenteditable="true"]`,
		`input[type="text"]`,
	},
	RoleSubmit: {
		`button[type="submit"]`,
		`button[aria-label*="Send"]`,
		`button[aria-label*="send"]`,
	},
	RoleMessages: {`[role="log"]`, `main`},
	RoleComposer: {`form`, `footer`},
	RoleHead:     {`head`},
}

// KnownRole reports whether name is a role the resolver can look up.
func KnownRole(name string) bool {
	_, ok := defaultSelectors[Role(name)]
	return ok
}

// Resolver maps roles to live host elements. It never caches: the host may
// replace any node between two calls.
type Resolver struct {
	doc       host.Document
	selectors map[Role][]string
}

// NewResolver builds a resolver. extra selectors per role are tried before
// the defaults.
func NewResolver(doc host.Document, extra map[string][]string) *Resolver {
	sel := make(map[Role][]string, len(defaultSelectors))
	for role, list := range defaultSelectors {
		merged := append([]string(nil), extra[string(role)]...)
		sel[role] = append(merged, list...)
	}
	return &Resolver{doc: doc, selectors: sel}
}

// Resolve returns the first element matching role, or ok=false.
func (r *Resolver) Resolve(role Role) (host.Element, bool) {
	for _, s := range r.selectors[role] {
		if el, ok := r.doc.QueryFirst(s); ok {
			return el, true
		}
	}
	return nil, false
}

// Present reports whether an element with the given id exists.
func (r *Resolver) Present(id string) bool {
	_, ok := r.doc.QueryFirst("#" + id)
	return ok
}
