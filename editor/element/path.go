// Package element addresses and identifies editable elements of an HTML
// tree parsed by golang.org/x/net/html.
//
// Two addressing schemes coexist. A Path is structural (tag and same-tag
// sibling index from the content root) and survives a serialize/parse round
// trip. An identity tag is an attribute stamped on each editable element and
// survives as long as the attribute does; it is stripped on export.
package element

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNotFound is returned when a path or identity does not resolve. It is an
// expected outcome (stale path, unknown tag), not a failure.
var ErrNotFound = errors.New("element: not found")

// Segment is one step of a Path: the Index-th child element named Tag among
// its same-tag siblings (zero-based).
type Segment struct {
	Tag   string `json:"tag"`
	Index int    `json:"index"`
}

// Path addresses an element from the content root (<body>). The empty path
// addresses the content root itself.
type Path []Segment

// String renders the path as "div:0/p:2". The empty path renders as "".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Tag + ":" + strconv.Itoa(s.Index)
	}
	return strings.Join(parts, "/")
}

// ParsePath parses the String form of a Path.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/ ")
	if s == "" {
		return Path{}, nil
	}
	raw := strings.Split(s, "/")
	p := make(Path, 0, len(raw))
	for _, r := range raw {
		tag, idx, ok := strings.Cut(r, ":")
		if !ok || tag == "" {
			return nil, fmt.Errorf("element: bad path segment %q", r)
		}
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("element: bad index in segment %q", r)
		}
		p = append(p, Segment{Tag: strings.ToLower(tag), Index: n})
	}
	return p, nil
}

// ComputePath walks up from n to the content root. Each step records the tag
// and the count of preceding same-tag element siblings, overlay nodes
// excluded so that paths agree with the serialized document. The walk stops at
// the content root, at its container (<html>), or at a parentless node.
func ComputePath(n *html.Node) Path {
	var rev Path
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if cur.DataAtom == atom.Body || cur.DataAtom == atom.Html {
			break
		}
		if cur.Parent == nil {
			break
		}
		rev = append(rev, Segment{Tag: cur.Data, Index: sameTagIndex(cur)})
	}
	p := make(Path, len(rev))
	for i, s := range rev {
		p[len(rev)-1-i] = s
	}
	return p
}

// ResolvePath narrows from the content root of doc through each segment.
// It returns ErrNotFound when a segment is out of range or the document has
// no content root. It never mutates the tree.
func ResolvePath(doc *html.Node, p Path) (*html.Node, error) {
	cur := Body(doc)
	if cur == nil {
		return nil, ErrNotFound
	}
	for _, seg := range p {
		next := nthChild(cur, seg.Tag, seg.Index)
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		cur = next
	}
	return cur, nil
}

// Body returns the content root of the document containing n, or nil. n may
// be the document node, the <html> element or any node below it.
func Body(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for n.Parent != nil {
		n = n.Parent
	}
	return findFirst(n, atom.Body)
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, a); f != nil {
			return f
		}
	}
	return nil
}

func sameTagIndex(n *html.Node) int {
	idx := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data && !IsOverlay(s) {
			idx++
		}
	}
	return idx
}

func nthChild(parent *html.Node, tag string, index int) *html.Node {
	if index < 0 {
		return nil
	}
	i := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != tag || IsOverlay(c) {
			continue
		}
		if i == index {
			return c
		}
		i++
	}
	return nil
}
