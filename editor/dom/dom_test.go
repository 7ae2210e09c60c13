package dom

import (
	"errors"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/mutation"
)

func mustParse(t *testing.T, text string, opts ...Option) *Document {
	t.Helper()
	d, err := Parse(text, opts...)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func first(t *testing.T, d *Document, sel string) *html.Node {
	t.Helper()
	nodes := d.Query(cascadia.MustCompile(sel))
	if len(nodes) == 0 {
		t.Fatalf("no match for %q", sel)
	}
	return nodes[0]
}

func serialize(t *testing.T, d *Document) string {
	t.Helper()
	s, err := d.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return s
}

func record(d *Document) *[]mutation.Record {
	var recs []mutation.Record
	d.Observe(func(r mutation.Record) { recs = append(recs, r) })
	return &recs
}

func TestSerialize_DoctypeAndHTML(t *testing.T) {
	d := mustParse(t, "<p>hi</p>")
	got := serialize(t, d)
	want := "<!DOCTYPE html>\n<html><head></head><body><p>hi</p></body></html>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerialize_OmitsOverlay(t *testing.T) {
	d := mustParse(t, `<p>a</p><div class="hive-overlay"><div class="hive-highlight"></div></div>`)
	got := serialize(t, d)
	if strings.Contains(got, "hive-overlay") || strings.Contains(got, "hive-highlight") {
		t.Fatalf("overlay leaked into snapshot: %q", got)
	}
	if n := len(d.Query(cascadia.MustCompile(".hive-overlay"))); n != 1 {
		t.Fatalf("overlay missing after serialize, found %d", n)
	}
}

func TestSerialize_LeavesTreeUntouched(t *testing.T) {
	d := mustParse(t, `<p>a</p><div class="hive-overlay"><div class="hive-highlight"></div></div><p>b</p>`)
	body := d.Body()
	overlay := d.Query(cascadia.MustCompile(".hive-overlay"))[0]
	prev, next := overlay.PrevSibling, overlay.NextSibling

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := d.Serialize(); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	// Serialize only reads the tree, so walking it concurrently is safe.
	for {
		select {
		case <-done:
			if overlay.Parent != body || overlay.PrevSibling != prev || overlay.NextSibling != next {
				t.Fatal("overlay relinked by serialize")
			}
			return
		default:
		}
		n := 0
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			n++
		}
		if n != 3 {
			t.Fatalf("body has %d children during serialize, want 3", n)
		}
	}
}

func TestSerialize_Unavailable(t *testing.T) {
	d := New()
	if _, err := d.Serialize(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty document: err = %v", err)
	}
	d = mustParse(t, "<p>x</p>")
	d.Close()
	if _, err := d.Serialize(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("closed document: err = %v", err)
	}
}

func TestLoad_EmitsReset(t *testing.T) {
	d := mustParse(t, "<p>a</p>")
	old := first(t, d, "p")
	recs := record(d)
	if err := d.Load("<p>b</p>"); err != nil {
		t.Fatal(err)
	}
	if len(*recs) != 1 || (*recs)[0].Op != mutation.OpDocReset {
		t.Fatalf("records = %+v", *recs)
	}
	if d.IsAttached(old) {
		t.Fatal("node from previous tree still attached")
	}
}

func TestSetStyle(t *testing.T) {
	d := mustParse(t, `<p style="color: red">x</p>`)
	p := first(t, d, "p")

	if err := d.SetStyle(p, "backgroundColor", "blue"); err != nil {
		t.Fatal(err)
	}
	if got, _ := element.Attr(p, "style"); got != "color: red; background-color: blue" {
		t.Fatalf("style = %q", got)
	}
	if got := d.Style(p, "backgroundColor"); got != "blue" {
		t.Fatalf("Style = %q", got)
	}

	if err := d.SetStyle(p, "color", ""); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStyle(p, "background-color", "  "); err != nil {
		t.Fatal(err)
	}
	if _, ok := element.Attr(p, "style"); ok {
		t.Fatalf("empty style attribute kept: %+v", p.Attr)
	}
}

func TestStyleValueWithColon(t *testing.T) {
	decls := parseStyle("background: url(http://x/y.png); color: red")
	if got := decls.get("background"); got != "url(http://x/y.png)" {
		t.Fatalf("background = %q", got)
	}
}

func TestSetText(t *testing.T) {
	d := mustParse(t, "<p>old <b>bold</b></p>")
	p := first(t, d, "p")
	recs := record(d)
	if err := d.SetText(p, "new"); err != nil {
		t.Fatal(err)
	}
	if got := d.InnerHTML(p); got != "new" {
		t.Fatalf("inner = %q", got)
	}
	if len(*recs) != 1 || (*recs)[0].OldValue != "old bold" || (*recs)[0].Op != mutation.OpText {
		t.Fatalf("records = %+v", *recs)
	}
}

func TestSetInnerHTML_Sanitized(t *testing.T) {
	d := mustParse(t, "<div></div>", WithSanitizer(bluemonday.UGCPolicy()))
	div := first(t, d, "div")
	if err := d.SetInnerHTML(div, `<b>ok</b><script>alert(1)</script>`); err != nil {
		t.Fatal(err)
	}
	got := d.InnerHTML(div)
	if strings.Contains(got, "script") || !strings.Contains(got, "<b>ok</b>") {
		t.Fatalf("inner = %q", got)
	}
}

func TestInsert_Defaults(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"p", `<p style="padding: 8px; margin: 4px; border: 1px dashed #ccc">Paragraph text</p>`},
		{"h2", `<h2 style="padding: 8px; margin: 4px; border: 1px dashed #ccc">Heading 2</h2>`},
		{"a", `<a href="#" style="padding: 8px; margin: 4px; border: 1px dashed #ccc">Link</a>`},
		{"button", `<button style="padding: 8px; margin: 4px; border: 1px dashed #ccc">Button</button>`},
		{"input", `<input type="text" placeholder="Enter text" style="padding: 8px; margin: 4px; border: 1px dashed #ccc"/>`},
		{"section", `<section style="padding: 8px; margin: 4px; border: 1px dashed #ccc">New section</section>`},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			d := mustParse(t, "<div></div>")
			n, err := d.Insert(first(t, d, "div"), tt.tag, PositionChild)
			if err != nil {
				t.Fatal(err)
			}
			if got := render(n); got != tt.want {
				t.Fatalf("got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestInsert_Positions(t *testing.T) {
	d := mustParse(t, `<div><p id="ref">r</p></div>`)
	ref := first(t, d, "#ref")
	recs := record(d)

	if _, err := d.Insert(ref, "span", PositionBefore); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Insert(ref, "em", PositionAfter); err != nil {
		t.Fatal(err)
	}
	var tags []string
	for c := ref.Parent.FirstChild; c != nil; c = c.NextSibling {
		tags = append(tags, c.Data)
	}
	if got := strings.Join(tags, ","); got != "span,p,em" {
		t.Fatalf("children = %s", got)
	}
	if len(*recs) != 2 || (*recs)[0].Path != "div:0/span:0" || (*recs)[1].Path != "div:0/em:0" {
		t.Fatalf("records = %+v", *recs)
	}

	if _, err := d.Insert(ref, "p", Position("sideways")); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("bad position: err = %v", err)
	}
	if _, err := d.Insert(ref, "<script>", PositionChild); err == nil {
		t.Fatal("invalid tag accepted")
	}
	if _, err := d.Insert(d.Body(), "p", PositionBefore); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("insert before body: err = %v", err)
	}
}

func TestInsert_ChildStaysAheadOfOverlay(t *testing.T) {
	d := mustParse(t, `<p>a</p><div class="hive-overlay"></div>`)
	n, err := d.Insert(d.Body(), "p", PositionChild)
	if err != nil {
		t.Fatal(err)
	}
	if n.NextSibling == nil || !element.IsOverlay(n.NextSibling) {
		t.Fatal("inserted child not placed before overlay")
	}
	if got := element.ComputePath(n).String(); got != "p:1" {
		t.Fatalf("path = %s", got)
	}
}

func TestDuplicate_StripsIdentities(t *testing.T) {
	d := mustParse(t, `<div data-hive-id="hive-1-0"><span data-hive-id="hive-1-1">x</span></div>`)
	div := first(t, d, "div")
	clone, err := d.Duplicate(div)
	if err != nil {
		t.Fatal(err)
	}
	if div.NextSibling != clone {
		t.Fatal("clone not inserted after original")
	}
	if got := render(clone); got != "<div><span>x</span></div>" {
		t.Fatalf("clone = %s", got)
	}
	if _, ok := element.Identity(div); !ok {
		t.Fatal("original lost its identity")
	}
	if _, err := d.Duplicate(d.Body()); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("duplicate body: err = %v", err)
	}
}

func TestMove(t *testing.T) {
	d := mustParse(t, `<ul><li id="a">a</li> <li id="b">b</li> <li id="c">c</li></ul><div id="box"></div>`)
	a, b, c := first(t, d, "#a"), first(t, d, "#b"), first(t, d, "#c")
	box := first(t, d, "#box")
	order := func() string {
		var ids []string
		for n := a.Parent.FirstChild; n != nil; n = n.NextSibling {
			if id, ok := element.Attr(n, "id"); ok {
				ids = append(ids, id)
			}
		}
		return strings.Join(ids, "")
	}

	if err := d.Move(b, MoveUp, nil); err != nil {
		t.Fatal(err)
	}
	if got := order(); got != "bac" {
		t.Fatalf("after up: %s", got)
	}
	if err := d.Move(b, MoveDown, nil); err != nil {
		t.Fatal(err)
	}
	if got := order(); got != "abc" {
		t.Fatalf("after down: %s", got)
	}

	recs := record(d)
	if err := d.Move(a, MoveUp, nil); err != nil {
		t.Fatal(err)
	}
	if len(*recs) != 0 {
		t.Fatalf("no-op move reported: %+v", *recs)
	}

	if err := d.Move(c, MoveBefore, a); err != nil {
		t.Fatal(err)
	}
	if got := order(); got != "cab" {
		t.Fatalf("after before: %s", got)
	}
	if err := d.Move(c, MoveInto, box); err != nil {
		t.Fatal(err)
	}
	if c.Parent != box {
		t.Fatal("into did not reparent")
	}
	rec := (*recs)[len(*recs)-1]
	if rec.Op != mutation.OpMove || rec.Value != "div:0/li:0" || rec.OldValue != "ul:0/li:0" {
		t.Fatalf("move record = %+v", rec)
	}
	if err := d.Move(box, MoveInto, c); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("cycle: err = %v", err)
	}
}

func TestRemove(t *testing.T) {
	d := mustParse(t, "<p>a</p><p>b</p>")
	p := first(t, d, "p")
	recs := record(d)
	if err := d.Remove(p); err != nil {
		t.Fatal(err)
	}
	if d.IsAttached(p) {
		t.Fatal("removed node still attached")
	}
	if len(*recs) != 1 || (*recs)[0].Path != "p:0" || !(*recs)[0].Structural() {
		t.Fatalf("records = %+v", *recs)
	}
	if err := d.Remove(p); !errors.Is(err, ErrDetached) {
		t.Fatalf("second remove: err = %v", err)
	}
	if err := d.Remove(d.Body()); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("remove body: err = %v", err)
	}
}

func TestOverlayMutationsAreSilent(t *testing.T) {
	d := mustParse(t, "<p>a</p>")
	recs := record(d)

	overlay := NewElement("div", html.Attribute{Key: "class", Val: element.ClassOverlay})
	if err := d.AppendChild(d.Body(), overlay); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStyle(overlay, "display", "none"); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(overlay); err != nil {
		t.Fatal(err)
	}
	if len(*recs) != 0 {
		t.Fatalf("overlay mutations reported: %+v", *recs)
	}

	if err := d.SetAttr(first(t, d, "p"), "title", "t"); err != nil {
		t.Fatal(err)
	}
	if len(*recs) != 1 {
		t.Fatalf("content mutation not reported: %+v", *recs)
	}
}

func TestObserveCancel(t *testing.T) {
	d := mustParse(t, "<p>a</p>")
	n := 0
	cancel := d.Observe(func(mutation.Record) { n++ })
	_ = d.SetAttr(first(t, d, "p"), "title", "1")
	cancel()
	cancel()
	_ = d.SetAttr(first(t, d, "p"), "title", "2")
	if n != 1 {
		t.Fatalf("observer calls = %d, want 1", n)
	}
}

func TestDispatch(t *testing.T) {
	d := mustParse(t, "<p>text</p>")
	p := first(t, d, "p")

	var seen []string
	d.AddEventListener(EventClick, func(ev *Event) {
		seen = append(seen, "first:"+ev.Target.Data)
		ev.StopPropagation()
	})
	remove := d.AddEventListener(EventClick, func(ev *Event) { seen = append(seen, "second") })

	d.Dispatch(&Event{Type: EventClick, Target: p.FirstChild})
	if strings.Join(seen, ",") != "first:p" {
		t.Fatalf("seen = %v", seen)
	}
	remove()
	remove()
	if got := d.ListenerCount(EventClick); got != 1 {
		t.Fatalf("listeners = %d", got)
	}
}

func TestAnimationFrames(t *testing.T) {
	d := mustParse(t, "<p>a</p>")
	var ran []int
	d.RequestAnimationFrame(func() {
		ran = append(ran, 1)
		d.RequestAnimationFrame(func() { ran = append(ran, 2) })
	})
	if got := d.FlushFrames(); got != 1 || len(ran) != 1 {
		t.Fatalf("first flush ran %d, ran=%v", got, ran)
	}
	if got := d.FlushFrames(); got != 1 || len(ran) != 2 {
		t.Fatalf("second flush ran %d, ran=%v", got, ran)
	}
	d.Close()
	d.RequestAnimationFrame(func() { t.Fatal("frame after close") })
	if got := d.FlushFrames(); got != 0 {
		t.Fatalf("flush after close ran %d", got)
	}
}

func TestStaticLayoutScroll(t *testing.T) {
	l := NewStaticLayout()
	d := mustParse(t, "<p>a</p>", WithLayout(l))
	p := first(t, d, "p")
	l.Set(p, Rect{Top: 100, Left: 10, Width: 50, Height: 20})
	l.ScrollTo(0, 40)
	r, err := d.BoundingBox(p)
	if err != nil {
		t.Fatal(err)
	}
	if r != (Rect{Top: 60, Left: 10, Width: 50, Height: 20}) {
		t.Fatalf("rect = %+v", r)
	}
}
