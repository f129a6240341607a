package host

import "strings"

// Op is a structural change kind. Attribute and text changes are not
// reported.
type Op string

const (
	OpInsert Op = "insert"
	OpRemove Op = "remove"
)

// Change is a single child-list change under the observed root.
type Change struct {
	Op Op `json:"op"`
	// Own is true when the node carries the augmentation marker.
	Own bool   `json:"own,omitempty"`
	ID  string `json:"id,omitempty"`
	Tag string `json:"tag,omitempty"`
}

// Batch is one structural change notification.
type Batch struct {
	Changes []Change `json:"changes"`
}

// SelfEcho reports whether the batch consists only of insertions of marked
// subtrees, i.e. the engine observing its own work.
func (b Batch) SelfEcho() bool {
	if len(b.Changes) == 0 {
		return false
	}
	for _, c := range b.Changes {
		if c.Op != OpInsert || !c.Own {
			return false
		}
	}
	return true
}

// Len returns the number of changes.
func (b Batch) Len() int { return len(b.Changes) }

// KeyEvent is a keydown observed by the host listener.
type KeyEvent struct {
	Key   string `json:"key"`
	Mod   bool   `json:"mod"` // Ctrl or Meta
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
}

// Chord normalises the event to "mod+shift+alt+key", lowercase.
func (k KeyEvent) Chord() string {
	var parts []string
	if k.Mod {
		parts = append(parts, "mod")
	}
	if k.Shift {
		parts = append(parts, "shift")
	}
	if k.Alt {
		parts = append(parts, "alt")
	}
	parts = append(parts, strings.ToLower(k.Key))
	return strings.Join(parts, "+")
}
