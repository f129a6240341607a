package engine

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/chataug/augment/activity"
	"github.com/hazyhaar/chataug/augment/internal/host"
	"github.com/hazyhaar/chataug/augment/internal/memdom"
)

const chatPage = `<!DOCTYPE html>
<html><head><title>EM-SPARK</title></head>
<body><div id="root"><main>
  <div role="log" id="messages"><div class="step">Ready to analyze!</div></div>
  <aside id="other"><input type="search" id="search"></aside>
  <form id="composer">
    <textarea id="chat-input"></textarea>
    <button type="submit" id="send" disabled>Send</button>
  </form>
</main></div></body></html>`

const composerMarkup = `<div id="root"><main>
  <div role="log" id="messages"></div>
  <form id="composer"><textarea id="chat-input"></textarea><button type="submit" id="send">Send</button></form>
</main></div>`

const delay = 100 * time.Millisecond

// manualScheduler runs deferred callbacks when the test advances time.
type manualScheduler struct {
	now   time.Duration
	tasks []task
}

type task struct {
	at time.Duration
	fn func()
}

func (m *manualScheduler) AfterFunc(d time.Duration, fn func()) {
	m.tasks = append(m.tasks, task{at: m.now + d, fn: fn})
}

func (m *manualScheduler) Advance(d time.Duration) {
	m.now += d
	sort.SliceStable(m.tasks, func(i, j int) bool { return m.tasks[i].at < m.tasks[j].at })
	for len(m.tasks) > 0 && m.tasks[0].at <= m.now {
		t := m.tasks[0]
		m.tasks = m.tasks[1:]
		t.fn()
	}
}

type fixture struct {
	doc   *memdom.Document
	eng   *Engine
	sched *manualScheduler
	kinds []activity.Kind
}

func newFixture(t *testing.T, page string) *fixture {
	t.Helper()
	doc, err := memdom.FromString(page)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{doc: doc, sched: &manualScheduler{}}
	f.eng = New(doc, Options{
		PageID:          "test",
		DispatchDelay:   delay,
		PlaceholderText: "Ask about energy markets",
		FocusOnReady:    true,
		Scheduler:       f.sched,
		Report:          func(r activity.Record) { f.kinds = append(f.kinds, r.Kind) },
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ok, err := f.eng.Start()
	if err != nil || !ok {
		t.Fatalf("Start: ok=%v err=%v", ok, err)
	}
}

// settle delivers batches until the document stops changing.
func (f *fixture) settle(t *testing.T) int {
	t.Helper()
	for i := 0; i < 10; i++ {
		if !f.doc.Flush() {
			return i
		}
	}
	t.Fatal("mutation cascade did not settle")
	return 0
}

func (f *fixture) has(kind activity.Kind) bool {
	for _, k := range f.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func TestStartInjectsEverythingOnce(t *testing.T) {
	f := newFixture(t, chatPage)
	if f.eng.State() != StateUninitialized {
		t.Fatalf("state before start: %v", f.eng.State())
	}
	f.start(t)

	if f.eng.State() != StateObserving {
		t.Errorf("state after start: %v", f.eng.State())
	}
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels: got %d, want 1", n)
	}
	if n := f.doc.Count("head #" + StyleID); n != 1 {
		t.Errorf("style sheets: got %d, want 1", n)
	}
	if n := f.doc.Count("#" + PanelID + " + form"); n != 1 {
		t.Error("panel should sit immediately before the composer")
	}
	if v, _ := f.doc.Attr("textarea", "placeholder"); v != "Ask about energy markets" {
		t.Errorf("placeholder: got %q", v)
	}
	if !f.doc.Focused("textarea") {
		t.Error("input should be focused on start")
	}
	if !f.has(activity.KindInjected) || !f.has(activity.KindPlaceholderSet) {
		t.Errorf("activity: got %v", f.kinds)
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)

	ok, err := f.eng.Start()
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if ok {
		t.Error("second Start should report already started")
	}
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels after restart: got %d", n)
	}
}

func TestInjectorIdempotent(t *testing.T) {
	f := newFixture(t, chatPage)
	in := NewInjector(NewResolver(f.doc, nil), f.eng.logger)
	panel := PanelAugmentation(Catalog)

	if r := in.EnsurePresent(panel); r != Inserted {
		t.Fatalf("first: got %v, want inserted", r)
	}
	if r := in.EnsurePresent(panel); r != Present {
		t.Fatalf("second: got %v, want present", r)
	}
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels: got %d, want 1", n)
	}
}

func TestSelfHealingRestoresExactlyOne(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.settle(t)

	if n := f.doc.Remove("#" + PanelID); n != 1 {
		t.Fatalf("removed %d panels", n)
	}
	if !f.doc.Flush() {
		t.Fatal("removal batch not delivered")
	}
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Fatalf("panels after one batch: got %d, want 1", n)
	}

	// The restore is itself a mutation; it must be recognised as an echo
	// and stop there.
	if rounds := f.settle(t); rounds > 1 {
		t.Errorf("settle rounds: got %d, want <= 1", rounds)
	}
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels after settle: got %d, want 1", n)
	}

	st := f.eng.Stats()
	if st.Restorations != 1 {
		t.Errorf("restorations: got %d, want 1", st.Restorations)
	}
	if st.SelfEchoes == 0 {
		t.Error("own insertions should be counted as echoes")
	}
	if !f.has(activity.KindRestored) {
		t.Errorf("no restored activity in %v", f.kinds)
	}
}

func TestSelfHealingAfterFullRerender(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.settle(t)

	if err := f.doc.ReplaceBody(composerMarkup); err != nil {
		t.Fatal(err)
	}
	f.settle(t)

	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels: got %d, want 1", n)
	}
	if n := f.doc.Count("#" + StyleID); n != 1 {
		t.Errorf("style sheets: got %d, want 1", n)
	}
	if _, ok := f.doc.Attr("textarea", PlaceholderMark); !ok {
		t.Error("fresh input should be marked again")
	}
}

func TestDeferredUntilComposerRenders(t *testing.T) {
	f := newFixture(t, `<html><head></head><body><div id="root">Loading…</div></body></html>`)
	f.start(t)

	if n := f.doc.Count("#" + PanelID); n != 0 {
		t.Fatalf("panel injected without anchor")
	}
	f.settle(t)

	if err := f.doc.ReplaceBody(composerMarkup); err != nil {
		t.Fatal(err)
	}
	f.settle(t)
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels after render: got %d, want 1", n)
	}
	if f.eng.Stats().Restorations != 0 {
		t.Error("first insertion must not count as a restoration")
	}
}

func TestPlaceholderNeverClobbers(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)

	f.doc.SetHostAttr("textarea", "placeholder", "host text")
	f.doc.Type("textarea", "DAM for yesterday")

	for i := 0; i < 5; i++ {
		f.eng.Maintain("test")
		f.eng.Tick()
	}

	if v, _ := f.doc.Attr("textarea", "placeholder"); v != "host text" {
		t.Errorf("placeholder: got %q, want host text", v)
	}
	if v := f.doc.Value("textarea"); v != "DAM for yesterday" {
		t.Errorf("value: got %q", v)
	}
}

func TestTickRestoresClearedMarker(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.settle(t)

	// Attribute-only reset: no structural batch will fire.
	f.doc.RemoveHostAttr("textarea", PlaceholderMark)
	f.doc.RemoveHostAttr("textarea", "placeholder")
	if f.doc.Flush() {
		t.Fatal("attribute change must not produce a batch")
	}

	f.eng.Tick()
	if v, _ := f.doc.Attr("textarea", "placeholder"); v != "Ask about energy markets" {
		t.Errorf("placeholder after tick: got %q", v)
	}
}

func TestDispatcherContract(t *testing.T) {
	f := newFixture(t, chatPage)
	f.doc.RemoveHostAttr("#send", "disabled")
	f.start(t)

	if !f.eng.Send("RTM rate for last hour") {
		t.Fatal("Send returned false with input present")
	}
	if v := f.doc.Value("textarea"); v != "RTM rate for last hour" {
		t.Errorf("value: got %q", v)
	}
	if n := f.doc.InputEvents("textarea"); n != 1 {
		t.Errorf("input events: got %d, want 1", n)
	}
	if n := f.doc.Clicks("#send"); n != 0 {
		t.Fatalf("submitted before the delay: %d clicks", n)
	}

	f.sched.Advance(delay)
	if n := f.doc.Clicks("#send"); n != 1 {
		t.Errorf("submit clicks: got %d, want 1", n)
	}
	if f.eng.Stats().Dispatches != 1 {
		t.Errorf("dispatches: got %d", f.eng.Stats().Dispatches)
	}
}

func TestDispatcherDisabledSubmit(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)

	f.eng.Send("DAM rate today")
	f.sched.Advance(delay)

	if v := f.doc.Value("textarea"); v != "DAM rate today" {
		t.Errorf("value: got %q", v)
	}
	if n := f.doc.Clicks("#send"); n != 0 {
		t.Errorf("submit clicks: got %d, want 0", n)
	}
	if f.eng.Stats().Dropped != 1 || !f.has(activity.KindDropped) {
		t.Errorf("drop not recorded: %+v %v", f.eng.Stats(), f.kinds)
	}
}

func TestDispatcherWaitsForHostStateUpdate(t *testing.T) {
	f := newFixture(t, chatPage)
	// The host enables its submit button when its bound state sees a value.
	f.doc.OnInput(func(v string) {
		if strings.TrimSpace(v) != "" {
			f.doc.RemoveHostAttr("#send", "disabled")
		}
	})
	f.start(t)

	f.eng.Send("Compare DAM and GDAM for last week")
	f.sched.Advance(delay)
	if n := f.doc.Clicks("#send"); n != 1 {
		t.Errorf("submit clicks: got %d, want 1", n)
	}
}

func TestQuickActionClickSends(t *testing.T) {
	f := newFixture(t, chatPage)
	f.doc.RemoveHostAttr("#send", "disabled")
	f.start(t)

	// Click the label span inside the second button.
	if !f.doc.UserClick(`#chataug-panel button[data-chataug-action="1"] span`) {
		t.Fatal("click not delivered")
	}
	if v := f.doc.Value("textarea"); v != Catalog[1].Query {
		t.Errorf("value: got %q, want %q", v, Catalog[1].Query)
	}
	f.sched.Advance(delay)
	if n := f.doc.Clicks("#send"); n != 1 {
		t.Errorf("submit clicks: got %d", n)
	}
}

func TestUnknownQuickActionIgnored(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.eng.OnClick("99")
	f.eng.OnClick("x")
	if v := f.doc.Value("textarea"); v != "" {
		t.Errorf("value: got %q", v)
	}
}

func TestAbsentTargetsAreSilentNoops(t *testing.T) {
	page := `<html><head></head><body><div id="root">Loading…</div></body></html>`
	f := newFixture(t, page)
	before, _ := f.doc.HTML()

	if f.eng.Focus() {
		t.Error("Focus reported success without an input")
	}
	if f.eng.Send("DAM rate today") {
		t.Error("Send reported success without an input")
	}
	f.sched.Advance(delay)

	in := NewInjector(NewResolver(f.doc, nil), f.eng.logger)
	if r := in.EnsurePresent(PanelAugmentation(Catalog)); r != Deferred {
		t.Errorf("panel without anchor: got %v, want deferred", r)
	}

	for _, ev := range []host.KeyEvent{
		{Key: "k", Mod: true}, {Key: "Escape"}, {Key: "Enter", Mod: true},
	} {
		if _, ran := f.eng.keys.Handle(ev); ran {
			t.Errorf("%s ran without targets", ev.Chord())
		}
	}

	after, _ := f.doc.HTML()
	if before != after {
		t.Errorf("document mutated:\nbefore %s\nafter  %s", before, after)
	}
	if f.doc.Pending() != 0 {
		t.Errorf("structural changes queued: %d", f.doc.Pending())
	}
}

func TestShortcutFocusSelects(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.doc.FocusOn("#search")

	if !f.doc.Key(host.KeyEvent{Key: "k", Mod: true}) {
		t.Error("mod+k default should be prevented")
	}
	if !f.doc.Focused("textarea") || !f.doc.Selected("textarea") {
		t.Error("mod+k should focus and select the input")
	}
	if f.eng.Stats().Shortcuts != 1 {
		t.Errorf("shortcuts: got %d", f.eng.Stats().Shortcuts)
	}
}

func TestShortcutClearIsScopedToInput(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.doc.Type("textarea", "draft")

	f.doc.FocusOn("#search")
	if f.doc.Key(host.KeyEvent{Key: "Escape"}) {
		t.Error("escape default must not be prevented")
	}
	if v := f.doc.Value("textarea"); v != "draft" {
		t.Errorf("escape outside input cleared it: %q", v)
	}

	f.doc.FocusOn("textarea")
	f.doc.Key(host.KeyEvent{Key: "Escape"})
	if v := f.doc.Value("textarea"); v != "" {
		t.Errorf("value after escape: got %q", v)
	}
	if f.doc.Focused("textarea") {
		t.Error("escape should blur the input")
	}
}

func TestShortcutSubmitRespectsDisabled(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)

	f.doc.Key(host.KeyEvent{Key: "Enter", Mod: true})
	if n := f.doc.Clicks("#send"); n != 0 {
		t.Errorf("clicked disabled submit %d times", n)
	}

	f.doc.RemoveHostAttr("#send", "disabled")
	f.doc.Key(host.KeyEvent{Key: "Enter", Mod: true})
	if n := f.doc.Clicks("#send"); n != 1 {
		t.Errorf("submit clicks: got %d, want 1", n)
	}
}

func TestOnReadyNewDocumentOnly(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)

	f.eng.OnReady("doc-a")
	f.eng.OnReady("doc-a")
	n := 0
	for _, k := range f.kinds {
		if k == activity.KindReady {
			n++
		}
	}
	if n != 1 {
		t.Errorf("ready activities: got %d, want 1", n)
	}
}

func TestNewDocumentInsertionsAreNotRestorations(t *testing.T) {
	f := newFixture(t, chatPage)
	f.start(t)
	f.settle(t)
	f.eng.OnReady("doc-a")

	// Same document: the host drops the panel and it comes back.
	f.doc.Remove("#" + PanelID)
	f.settle(t)
	if got := f.eng.Stats().Restorations; got != 1 {
		t.Fatalf("restorations after re-render: got %d, want 1", got)
	}

	// Full navigation in the same tab: nothing of ours survives.
	f.doc.Remove("#" + StyleID)
	if err := f.doc.ReplaceBody(composerMarkup); err != nil {
		t.Fatal(err)
	}
	f.eng.OnReady("doc-b")
	f.settle(t)

	if got := f.eng.Stats().Restorations; got != 1 {
		t.Errorf("restorations after navigation: got %d, want 1", got)
	}
	if n := f.eng.inject.Insertions(PanelID); n != 1 {
		t.Errorf("panel insertions in new document: got %d, want 1", n)
	}
	if n := f.doc.Count("#" + PanelID); n != 1 {
		t.Errorf("panels: got %d, want 1", n)
	}
}

func TestSelectorOverridesTriedFirst(t *testing.T) {
	page := `<html><head></head><body>
<textarea id="notes"></textarea>
<form><div id="real" contenteditable="true" role="textbox"></div></form></body></html>`
	doc, err := memdom.FromString(page)
	if err != nil {
		t.Fatal(err)
	}
	res := NewResolver(doc, map[string][]string{"input": {"#real"}})
	el, ok := res.Resolve(RoleInput)
	if !ok {
		t.Fatal("input not resolved")
	}
	el.SetAttr("data-hit", "1")
	if _, ok := doc.Attr("#real", "data-hit"); !ok {
		t.Error("override selector was not preferred")
	}
}

func TestKnownRole(t *testing.T) {
	for _, r := range []Role{RoleInput, RoleSubmit, RoleMessages, RoleComposer, RoleHead} {
		if !KnownRole(r.String()) {
			t.Errorf("KnownRole(%q) = false", r)
		}
	}
	if KnownRole("sidebar") {
		t.Error("KnownRole(sidebar) = true")
	}
}
