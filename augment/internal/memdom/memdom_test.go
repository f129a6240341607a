package memdom

import (
	"errors"
	"testing"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

const page = `<html><head></head><body>
<div id="root"><form id="f"><textarea id="in">seed</textarea><button id="go" type="submit">Send</button></form></div>
</body></html>`

type recorder struct {
	batches []host.Batch
	keys    []string
	clicks  []string
}

func (r *recorder) OnReady(string)              {}
func (r *recorder) OnMutations(b host.Batch)    { r.batches = append(r.batches, b) }
func (r *recorder) OnKey(ev host.KeyEvent) bool { r.keys = append(r.keys, ev.Chord()); return true }
func (r *recorder) OnClick(action string)       { r.clicks = append(r.clicks, action) }

func subscribed(t *testing.T) (*Document, *recorder) {
	t.Helper()
	d, err := FromString(page)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	err = d.Subscribe(rec, host.SubscribeOptions{
		PreventChords: []string{"mod+k"},
		Marker:        "data-own",
		ActionAttr:    "data-act",
	})
	if err != nil {
		t.Fatal(err)
	}
	return d, rec
}

func TestSubscribeOnce(t *testing.T) {
	d, _ := subscribed(t)
	if err := d.Subscribe(&recorder{}, host.SubscribeOptions{}); err == nil {
		t.Error("second Subscribe should fail")
	}
}

func TestInsertHTMLPositions(t *testing.T) {
	d, rec := subscribed(t)
	el, ok := d.QueryFirst("#f")
	if !ok {
		t.Fatal("form not found")
	}
	for _, c := range []struct {
		pos host.Position
		id  string
	}{
		{host.BeforeBegin, "bb"}, {host.AfterBegin, "ab"},
		{host.BeforeEnd, "be"}, {host.AfterEnd, "ae"},
	} {
		if err := el.InsertHTML(c.pos, `<p id="`+c.id+`" data-own="1"></p>`); err != nil {
			t.Fatalf("%s: %v", c.pos, err)
		}
	}

	for _, sel := range []string{"#bb + #f", "#f > #ab:first-child", "#f > #be:last-child", "#f + #ae"} {
		if d.Count(sel) != 1 {
			t.Errorf("%s: not matched", sel)
		}
	}

	if d.Pending() != 4 {
		t.Fatalf("pending: got %d, want 4", d.Pending())
	}
	if !d.Flush() {
		t.Fatal("Flush delivered nothing")
	}
	if len(rec.batches) != 1 || !rec.batches[0].SelfEcho() {
		t.Errorf("want one own-insert batch, got %+v", rec.batches)
	}
	if d.Flush() {
		t.Error("second Flush should be empty")
	}
}

func TestDetachedElementIsAbsent(t *testing.T) {
	d, rec := subscribed(t)
	el, _ := d.QueryFirst("#in")

	d.Remove("#in")
	if err := el.SetValue("x"); !errors.Is(err, host.ErrAbsent) {
		t.Errorf("SetValue on detached: got %v", err)
	}
	if err := el.Click(); !errors.Is(err, host.ErrAbsent) {
		t.Errorf("Click on detached: got %v", err)
	}

	d.Flush()
	if len(rec.batches) != 1 {
		t.Fatalf("batches: %d", len(rec.batches))
	}
	c := rec.batches[0].Changes[0]
	if c.Op != host.OpRemove || c.ID != "in" || c.Own {
		t.Errorf("change: %+v", c)
	}
}

func TestValueIsLiveState(t *testing.T) {
	d, _ := subscribed(t)
	if v := d.Value("#in"); v != "seed" {
		t.Errorf("initial value: got %q", v)
	}

	var seen string
	d.OnInput(func(v string) { seen = v })
	el, _ := d.QueryFirst("#in")
	el.SetValue("typed")
	el.DispatchInput()

	if v, _ := el.Value(); v != "typed" {
		t.Errorf("value: got %q", v)
	}
	if seen != "typed" {
		t.Errorf("input hook saw %q", seen)
	}
	if d.InputEvents("#in") != 1 {
		t.Errorf("input events: %d", d.InputEvents("#in"))
	}
	if d.Pending() != 0 {
		t.Error("value changes must not be structural")
	}
}

func TestKeyAndClickDelivery(t *testing.T) {
	d, rec := subscribed(t)
	el, _ := d.QueryFirst("#root")
	el.InsertHTML(host.AfterBegin, `<div data-own="1"><button data-act="3"><span id="lbl">x</span></button></div>`)

	if !d.UserClick("#lbl") {
		t.Error("click inside action button not delivered")
	}
	if d.UserClick("#go") {
		t.Error("click outside action buttons delivered")
	}
	if len(rec.clicks) != 1 || rec.clicks[0] != "3" {
		t.Errorf("clicks: %v", rec.clicks)
	}

	if !d.Key(host.KeyEvent{Key: "k", Mod: true}) {
		t.Error("mod+k should be prevented")
	}
	if d.Key(host.KeyEvent{Key: "Escape"}) {
		t.Error("escape should not be prevented")
	}
	if len(rec.keys) != 2 {
		t.Errorf("keys: %v", rec.keys)
	}
}

func TestDisabledAndActive(t *testing.T) {
	d, _ := subscribed(t)
	btn, _ := d.QueryFirst("#go")
	if dis, _ := btn.Disabled(); dis {
		t.Error("button should start enabled")
	}
	d.SetHostAttr("#go", "aria-disabled", "true")
	if dis, _ := btn.Disabled(); !dis {
		t.Error("aria-disabled not honoured")
	}

	in, _ := d.QueryFirst("#in")
	in.Focus()
	if a, _ := in.IsActive(); !a {
		t.Error("focused input not active")
	}
	in.Blur()
	if d.Focused("#in") {
		t.Error("blur did not clear focus")
	}
}
