package engine

import (
	"errors"
	"log/slog"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// Augmentation is an injectable subtree. Render must return a fragment with
// a single root carrying ID and the marker attribute.
type Augmentation struct {
	ID       string
	Anchor   Role
	Position host.Position
	Render   func() (string, error)
}

// InjectResult is the outcome of EnsurePresent.
type InjectResult int

const (
	Present  InjectResult = iota // already in the document
	Inserted                     // first insertion
	Restored                     // re-inserted after the host removed it
	Deferred                     // anchor absent, retried on the next cycle
	Failed                       // host error, treated like Deferred
)

func (r InjectResult) String() string {
	switch r {
	case Present:
		return "present"
	case Inserted:
		return "inserted"
	case Restored:
		return "restored"
	case Deferred:
		return "deferred"
	default:
		return "failed"
	}
}

// Injector creates each augmentation at most once per document snapshot.
// The id check is the guard: once the host removes the subtree, the next
// call inserts it again.
type Injector struct {
	res    *Resolver
	counts map[string]int
	logger *slog.Logger
}

// NewInjector creates an Injector.
func NewInjector(res *Resolver, logger *slog.Logger) *Injector {
	return &Injector{res: res, counts: make(map[string]int), logger: logger}
}

// EnsurePresent inserts a if no element with a.ID exists.
func (in *Injector) EnsurePresent(a Augmentation) InjectResult {
	if in.res.Present(a.ID) {
		return Present
	}

	anchor, ok := in.res.Resolve(a.Anchor)
	if !ok {
		return Deferred
	}

	fragment, err := a.Render()
	if err != nil {
		in.logger.Error("engine: render augmentation", "id", a.ID, "error", err)
		return Failed
	}

	if err := anchor.InsertHTML(a.Position, fragment); err != nil {
		if errors.Is(err, host.ErrAbsent) {
			return Deferred
		}
		in.logger.Warn("engine: insert augmentation", "id", a.ID, "error", err)
		return Failed
	}

	in.counts[a.ID]++
	if in.counts[a.ID] > 1 {
		return Restored
	}
	return Inserted
}

// Insertions returns how many times id has been inserted into the current
// document.
func (in *Injector) Insertions(id string) int { return in.counts[id] }

// Reset forgets insertion history, for a newly loaded document.
func (in *Injector) Reset() { clear(in.counts) }
