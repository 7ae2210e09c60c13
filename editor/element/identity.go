package element

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/hive/idgen"
)

// IdentityAttr is the attribute carrying an element's identity tag.
const IdentityAttr = "data-hive-id"

// Reserved classes of the synthetic overlay nodes. Elements carrying one of
// them, and everything below, are chrome rather than content.
const (
	ClassOverlay   = "hive-overlay"
	ClassHighlight = "hive-highlight"
	ClassLabel     = "hive-label"
)

var overlayClasses = []string{ClassOverlay, ClassHighlight, ClassLabel}

var identityRe = regexp.MustCompile(`\s+` + IdentityAttr + `="[^"]*"`)

// Stamper assigns identity tags. The zero value is not usable; call
// NewStamper.
type Stamper struct {
	gen idgen.Generator
}

// NewStamper returns a Stamper drawing tags from gen. A nil gen uses a
// process-wide "hive-<ms>-<n>" sequence.
func NewStamper(gen idgen.Generator) *Stamper {
	if gen == nil {
		gen = defaultTags
	}
	return &Stamper{gen: gen}
}

var defaultTags = idgen.Sequence("hive")

// StampAll gives every editable element under the content root of doc an
// identity tag unless it already has one. Overlay nodes and their subtrees
// are skipped. It returns the number of tags assigned, so a second pass over
// an unchanged tree returns 0.
func (s *Stamper) StampAll(doc *html.Node) int {
	body := Body(doc)
	if body == nil {
		return 0
	}
	assigned := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if IsOverlay(c) {
				continue
			}
			if _, ok := Identity(c); !ok {
				setAttr(c, IdentityAttr, s.gen())
				assigned++
			}
			walk(c)
		}
	}
	walk(body)
	return assigned
}

// Identity returns the identity tag of n.
func Identity(n *html.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	v, ok := Attr(n, IdentityAttr)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FindByIdentity returns the element of doc carrying tag.
func FindByIdentity(doc *html.Node, tag string) (*html.Node, error) {
	if doc == nil || tag == "" {
		return nil, ErrNotFound
	}
	sel, err := cascadia.Compile("[" + IdentityAttr + "=" + strconv.Quote(tag) + "]")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	root := doc
	for root.Parent != nil {
		root = root.Parent
	}
	if n := sel.MatchFirst(root); n != nil {
		return n, nil
	}
	return nil, ErrNotFound
}

// StripIdentities removes every identity attribute from serialized text.
// The live tree is not touched. Other attributes and text are preserved
// byte for byte.
func StripIdentities(text string) string {
	return identityRe.ReplaceAllString(text, "")
}

// StripSubtree removes identity attributes from n and all its descendants.
// Duplicated subtrees go through it so that tags stay unique.
func StripSubtree(n *html.Node) {
	if n.Type == html.ElementNode {
		removeAttr(n, IdentityAttr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		StripSubtree(c)
	}
}

// IsOverlay reports whether n itself is a synthetic overlay node.
func IsOverlay(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	cls, _ := Attr(n, "class")
	for _, c := range strings.Fields(cls) {
		for _, oc := range overlayClasses {
			if c == oc {
				return true
			}
		}
	}
	return false
}

// InOverlay reports whether n is an overlay node or lies inside one.
func InOverlay(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if IsOverlay(cur) {
			return true
		}
	}
	return false
}

// IsEditable reports whether n is content a user may select and edit.
func IsEditable(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom == atom.Html || n.DataAtom == atom.Body {
		return false
	}
	return !InOverlay(n)
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}
