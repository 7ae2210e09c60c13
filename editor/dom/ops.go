package dom

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/mutation"
)

var (
	// ErrDetached is returned when an operation targets a node that is no
	// longer part of the tree.
	ErrDetached = errors.New("dom: node not attached")
	// ErrNotEditable is returned for structural edits of <html>, <body> or
	// overlay nodes.
	ErrNotEditable = errors.New("dom: node not editable")
	// ErrInvalidPosition is returned for unknown insert positions or move
	// directions, and for moves that would put a node inside itself.
	ErrInvalidPosition = errors.New("dom: invalid position")
)

// Position says where Insert puts a new element relative to its reference.
type Position string

const (
	PositionChild  Position = "child"
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// Direction says where Move puts an element.
type Direction string

const (
	MoveUp     Direction = "up"
	MoveDown   Direction = "down"
	MoveBefore Direction = "before"
	MoveAfter  Direction = "after"
	MoveInto   Direction = "into"
)

var (
	camelRe = regexp.MustCompile(`([A-Z])`)
	tagRe   = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// mutate runs fn on an attached node with the lock held, then reports the
// record unless the node belongs to the overlay or fn returned a zero record.
func (d *Document) mutate(n *html.Node, fn func() (mutation.Record, error)) error {
	d.mu.Lock()
	if d.root == nil || d.closed {
		d.mu.Unlock()
		return ErrUnavailable
	}
	if !d.attachedLocked(n) {
		d.mu.Unlock()
		return ErrDetached
	}
	overlay := element.InOverlay(n)
	rec, err := fn()
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if !overlay && rec.Op != "" {
		d.notify(rec)
	}
	return nil
}

func (d *Document) attachedLocked(n *html.Node) bool {
	if n == nil {
		return false
	}
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	return top == d.root
}

// SetAttr sets attribute name on n.
func (d *Document) SetAttr(n *html.Node, name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("dom: empty attribute name")
	}
	return d.mutate(n, func() (mutation.Record, error) {
		old, _ := element.Attr(n, name)
		setAttr(n, name, value)
		return mutation.Record{Op: mutation.OpAttr, Path: element.ComputePath(n).String(),
			Tag: n.Data, Name: name, Value: value, OldValue: old}, nil
	})
}

// RemoveAttr deletes attribute name from n.
func (d *Document) RemoveAttr(n *html.Node, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	return d.mutate(n, func() (mutation.Record, error) {
		old, _ := element.Attr(n, name)
		removeAttr(n, name)
		return mutation.Record{Op: mutation.OpAttrDel, Path: element.ComputePath(n).String(),
			Tag: n.Data, Name: name, OldValue: old}, nil
	})
}

// SetStyle sets one inline style property. camelCase names are converted to
// kebab-case; an empty or blank value removes the property.
func (d *Document) SetStyle(n *html.Node, property, value string) error {
	prop := cssProperty(property)
	if prop == "" {
		return fmt.Errorf("dom: empty style property")
	}
	return d.mutate(n, func() (mutation.Record, error) {
		old, _ := element.Attr(n, "style")
		decls := parseStyle(old)
		decls = decls.set(prop, strings.TrimSpace(value))
		style := decls.String()
		if style == "" {
			removeAttr(n, "style")
		} else {
			setAttr(n, "style", style)
		}
		return mutation.Record{Op: mutation.OpAttr, Path: element.ComputePath(n).String(),
			Tag: n.Data, Name: "style", Value: style, OldValue: old}, nil
	})
}

// Style returns the inline value of property on n.
func (d *Document) Style(n *html.Node, property string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n == nil {
		return ""
	}
	s, _ := element.Attr(n, "style")
	return parseStyle(s).get(cssProperty(property))
}

// SetText replaces the children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) error {
	return d.mutate(n, func() (mutation.Record, error) {
		old := textContent(n)
		removeChildren(n)
		if text != "" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		}
		return mutation.Record{Op: mutation.OpText, Path: element.ComputePath(n).String(),
			Tag: n.Data, Value: text, OldValue: old}, nil
	})
}

// SetInnerHTML replaces the children of n with the parsed fragment, passed
// through the sanitizer when one is configured.
func (d *Document) SetInnerHTML(n *html.Node, fragment string) error {
	if d.policy != nil {
		fragment = d.policy.Sanitize(fragment)
	}
	return d.mutate(n, func() (mutation.Record, error) {
		ctx := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
		nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
		if err != nil {
			return mutation.Record{}, fmt.Errorf("dom: parse fragment: %w", err)
		}
		removeChildren(n)
		for _, c := range nodes {
			n.AppendChild(c)
		}
		return mutation.Record{Op: mutation.OpInsert, Path: element.ComputePath(n).String(),
			Tag: n.Data, HTML: fragment}, nil
	})
}

// Insert creates a <tag> element with placeholder content and places it
// relative to ref.
func (d *Document) Insert(ref *html.Node, tag string, pos Position) (*html.Node, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if !tagRe.MatchString(tag) {
		return nil, fmt.Errorf("dom: invalid tag %q", tag)
	}
	if pos != PositionChild && !element.IsEditable(ref) {
		return nil, ErrNotEditable
	}
	n := newElement(tag)
	err := d.mutate(ref, func() (mutation.Record, error) {
		switch pos {
		case PositionChild:
			insertContentChild(ref, n)
		case PositionBefore:
			ref.Parent.InsertBefore(n, ref)
		case PositionAfter:
			ref.Parent.InsertBefore(n, ref.NextSibling)
		default:
			return mutation.Record{}, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
		}
		return mutation.Record{Op: mutation.OpInsert, Path: element.ComputePath(n).String(),
			Tag: tag, HTML: render(n)}, nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Duplicate deep-copies n, strips the identity tags of the copy and inserts
// it right after n.
func (d *Document) Duplicate(n *html.Node) (*html.Node, error) {
	if !element.IsEditable(n) {
		return nil, ErrNotEditable
	}
	var clone *html.Node
	err := d.mutate(n, func() (mutation.Record, error) {
		clone = cloneNode(n)
		element.StripSubtree(clone)
		n.Parent.InsertBefore(clone, n.NextSibling)
		return mutation.Record{Op: mutation.OpInsert, Path: element.ComputePath(clone).String(),
			Tag: clone.Data, HTML: render(clone)}, nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

// Move relocates n. Up and down swap with the neighbouring element sibling
// and are no-ops at the edges; before, after and into are relative to target.
func (d *Document) Move(n *html.Node, dir Direction, target *html.Node) error {
	if !element.IsEditable(n) {
		return ErrNotEditable
	}
	return d.mutate(n, func() (mutation.Record, error) {
		from := element.ComputePath(n).String()
		parent := n.Parent
		switch dir {
		case MoveUp:
			prev := prevElement(n)
			if prev == nil {
				return mutation.Record{}, nil
			}
			parent.RemoveChild(n)
			parent.InsertBefore(n, prev)
		case MoveDown:
			next := nextElement(n)
			if next == nil {
				return mutation.Record{}, nil
			}
			parent.RemoveChild(n)
			parent.InsertBefore(n, next.NextSibling)
		case MoveBefore, MoveAfter, MoveInto:
			if err := d.checkTarget(n, target, dir); err != nil {
				return mutation.Record{}, err
			}
			parent.RemoveChild(n)
			switch dir {
			case MoveBefore:
				target.Parent.InsertBefore(n, target)
			case MoveAfter:
				target.Parent.InsertBefore(n, target.NextSibling)
			default:
				insertContentChild(target, n)
			}
		default:
			return mutation.Record{}, fmt.Errorf("%w: %q", ErrInvalidPosition, dir)
		}
		to := element.ComputePath(n).String()
		return mutation.Record{Op: mutation.OpMove, Path: to, Tag: n.Data, OldValue: from, Value: to}, nil
	})
}

func (d *Document) checkTarget(n, target *html.Node, dir Direction) error {
	if target == nil || !d.attachedLocked(target) {
		return ErrDetached
	}
	if dir != MoveInto && !element.IsEditable(target) {
		return ErrNotEditable
	}
	if element.InOverlay(target) {
		return ErrNotEditable
	}
	for cur := target; cur != nil; cur = cur.Parent {
		if cur == n {
			return fmt.Errorf("%w: target inside moved node", ErrInvalidPosition)
		}
	}
	return nil
}

// Remove detaches n from the tree.
func (d *Document) Remove(n *html.Node) error {
	if !element.IsEditable(n) && !element.IsOverlay(n) {
		return ErrNotEditable
	}
	return d.mutate(n, func() (mutation.Record, error) {
		rec := mutation.Record{Op: mutation.OpRemove, Path: element.ComputePath(n).String(), Tag: n.Data}
		n.Parent.RemoveChild(n)
		return rec, nil
	})
}

// AppendChild attaches child as the last child of parent. Overlay setup uses
// it; content edits go through Insert.
func (d *Document) AppendChild(parent, child *html.Node) error {
	return d.mutate(parent, func() (mutation.Record, error) {
		if child.Parent != nil {
			child.Parent.RemoveChild(child)
		}
		parent.AppendChild(child)
		if element.InOverlay(child) {
			return mutation.Record{}, nil
		}
		return mutation.Record{Op: mutation.OpInsert, Path: element.ComputePath(child).String(),
			Tag: child.Data, HTML: render(child)}, nil
	})
}

// InnerHTML renders the children of n.
func (d *Document) InnerHTML(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// NewElement builds a detached element with the given attributes, in order.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func newElement(tag string) *html.Node {
	n := NewElement(tag)
	text := ""
	switch tag {
	case "img":
		setAttr(n, "src", "https://via.placeholder.com/150")
		setAttr(n, "alt", "Placeholder image")
	case "a":
		setAttr(n, "href", "#")
		text = "Link"
	case "button":
		text = "Button"
	case "input":
		setAttr(n, "type", "text")
		setAttr(n, "placeholder", "Enter text")
	case "h1", "h2", "h3":
		text = "Heading " + tag[1:]
	case "p":
		text = "Paragraph text"
	default:
		text = "New " + tag
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	setAttr(n, "style", "padding: 8px; margin: 4px; border: 1px dashed #ccc")
	return n
}

// insertContentChild appends n as the last content child of parent, ahead of
// any overlay nodes parked at the end.
func insertContentChild(parent, n *html.Node) {
	var before *html.Node
	for c := parent.LastChild; c != nil; c = c.PrevSibling {
		if element.IsOverlay(c) {
			before = c
			continue
		}
		if c.Type == html.ElementNode {
			break
		}
	}
	parent.InsertBefore(n, before)
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && !element.IsOverlay(s) {
			return s
		}
	}
	return nil
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && !element.IsOverlay(s) {
			return s
		}
	}
	return nil
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
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

func cssProperty(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.ToLower(camelRe.ReplaceAllString(p, "-$1"))
}
