package element

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/hive/idgen"
)

const page = `<!DOCTYPE html>
<html><head><title>t</title></head><body>
<header><nav><a href="#">Home</a><a href="#">About</a></nav></header>
<section id="features" class="bg-white py-16"><div><h2>Key</h2><p>one</p><p>two</p></div><div><p>three</p></div></section>
<footer><p>&copy; 2024</p></footer>
<div class="hive-overlay"></div><div class="hive-highlight"><span>x</span></div><div class="hive-label"></div>
</body></html>`

func parse(t *testing.T, text string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && !IsOverlay(c) {
				out = append(out, c)
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

func testStamper() *Stamper {
	var n atomic.Uint64
	return NewStamper(idgen.SequenceAt("hive", &n, func() time.Time { return time.UnixMilli(42) }))
}

func TestPathRoundTrip(t *testing.T) {
	doc := parse(t, page)
	body := Body(doc)
	for _, n := range elements(body) {
		p := ComputePath(n)
		got, err := ResolvePath(doc, p)
		if err != nil {
			t.Fatalf("ResolvePath(%s): %v", p, err)
		}
		if got != n {
			t.Errorf("ResolvePath(%s) returned a different node (%s)", p, got.Data)
		}
	}
}

func TestComputePath_SameTagIndex(t *testing.T) {
	doc := parse(t, page)
	sec, err := ResolvePath(doc, Path{{Tag: "section", Index: 0}})
	if err != nil {
		t.Fatal(err)
	}
	second := sec.FirstChild.FirstChild.NextSibling.NextSibling // h2, p, p
	if got := ComputePath(second).String(); got != "section:0/div:0/p:1" {
		t.Errorf("path: got %q", got)
	}
}

func TestComputePath_Root(t *testing.T) {
	doc := parse(t, page)
	if p := ComputePath(Body(doc)); len(p) != 0 {
		t.Errorf("body path: got %v, want empty", p)
	}
	if p := ComputePath(doc); len(p) != 0 {
		t.Errorf("document path: got %v, want empty", p)
	}
}

func TestComputePath_IgnoresOverlaySiblings(t *testing.T) {
	doc := parse(t, `<body><div class="hive-overlay"></div><div id="a"></div></body>`)
	var target *html.Node
	for _, n := range elements(Body(doc)) {
		if v, _ := Attr(n, "id"); v == "a" {
			target = n
		}
	}
	if got := ComputePath(target).String(); got != "div:0" {
		t.Errorf("path: got %q, want div:0", got)
	}
}

func TestResolvePath_Stale(t *testing.T) {
	doc := parse(t, page)
	_, err := ResolvePath(doc, Path{{Tag: "section", Index: 3}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	_, err = ResolvePath(doc, Path{{Tag: "footer", Index: 0}, {Tag: "table", Index: 0}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := ResolvePath(&html.Node{Type: html.DocumentNode}, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bodyless document: got %v", err)
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("section:0/div:1/P:2")
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "section:0/div:1/p:2" {
		t.Errorf("round trip: got %q", p.String())
	}
	if p, err := ParsePath(""); err != nil || len(p) != 0 {
		t.Errorf("empty: got %v, %v", p, err)
	}
	for _, bad := range []string{"div", "div:x", ":1", "div:-1"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("ParsePath(%q): expected error", bad)
		}
	}
}

func TestStampAll_SkipsOverlayAndIsIdempotent(t *testing.T) {
	doc := parse(t, page)
	s := testStamper()

	n := s.StampAll(doc)
	all := elements(Body(doc))
	if n != len(all) {
		t.Fatalf("first pass: stamped %d, want %d", n, len(all))
	}

	before := map[*html.Node]string{}
	for _, e := range all {
		tag, ok := Identity(e)
		if !ok {
			t.Fatalf("%s has no identity", e.Data)
		}
		before[e] = tag
	}

	if again := s.StampAll(doc); again != 0 {
		t.Fatalf("second pass: stamped %d, want 0", again)
	}
	for e, tag := range before {
		if got, _ := Identity(e); got != tag {
			t.Errorf("%s: tag changed %q -> %q", e.Data, tag, got)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if InOverlay(n) {
			if _, ok := Identity(n); ok {
				t.Errorf("overlay node %s acquired an identity", n.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func TestStampAll_UniqueTags(t *testing.T) {
	doc := parse(t, page)
	NewStamper(nil).StampAll(doc)
	seen := map[string]bool{}
	for _, e := range elements(Body(doc)) {
		tag, _ := Identity(e)
		if seen[tag] {
			t.Fatalf("duplicate tag %q", tag)
		}
		seen[tag] = true
		if !strings.HasPrefix(tag, "hive-") {
			t.Errorf("tag %q lacks hive- prefix", tag)
		}
	}
}

func TestFindByIdentity(t *testing.T) {
	doc := parse(t, page)
	testStamper().StampAll(doc)
	target, _ := ResolvePath(doc, Path{{Tag: "footer", Index: 0}, {Tag: "p", Index: 0}})
	tag, _ := Identity(target)

	got, err := FindByIdentity(doc, tag)
	if err != nil {
		t.Fatal(err)
	}
	if got != target {
		t.Error("FindByIdentity returned the wrong node")
	}
	if _, err := FindByIdentity(doc, "hive-nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown tag: got %v", err)
	}
	if _, err := FindByIdentity(doc, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty tag: got %v", err)
	}
}

func TestStripIdentities(t *testing.T) {
	in := `<!DOCTYPE html>
<html><head></head><body data-x="1"><div data-hive-id="hive-1-0" class="a" title="data-hive-id"><p data-hive-id="hive-1-1">data-hive-id=&#34;keep&#34;</p></div></body></html>`
	want := `<!DOCTYPE html>
<html><head></head><body data-x="1"><div class="a" title="data-hive-id"><p>data-hive-id=&#34;keep&#34;</p></div></body></html>`

	got := StripIdentities(in)
	if got != want {
		t.Fatalf("StripIdentities:\n got %s\nwant %s", got, want)
	}
	if strings.Contains(got, IdentityAttr+`="`) {
		t.Error("identity attribute survived")
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		html string
		want string
	}{
		{`<body><p></p></body>`, "p"},
		{`<body><section id="features" class="bg-white py-16"></section></body>`, "section#features.bg-white"},
		{`<body><div data-hive-id="hive-1-2" class="  card  big"></div></body>`, "div[hive-1-2].card"},
		{`<body><a id="x" data-hive-id="hive-9-9"></a></body>`, "a#x[hive-9-9]"},
	}
	for _, tt := range tests {
		doc := parse(t, tt.html)
		n := Body(doc).FirstChild
		if got := Label(n); got != tt.want {
			t.Errorf("Label(%s) = %q, want %q", tt.html, got, tt.want)
		}
	}
	if Label(nil) != "" {
		t.Error("Label(nil) should be empty")
	}
}

func TestIsEditable(t *testing.T) {
	doc := parse(t, page)
	body := Body(doc)
	if IsEditable(body) || IsEditable(body.Parent) {
		t.Error("html/body must not be editable")
	}
	if !IsEditable(elements(body)[0]) {
		t.Error("header should be editable")
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if IsOverlay(c) && IsEditable(c) {
			t.Error("overlay must not be editable")
		}
	}
}
