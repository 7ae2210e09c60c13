// Package dom is the live document of the editor: a mutable HTML tree that
// stands in for the browser frame. It serializes to snapshots, dispatches
// pointer/scroll/resize events to listeners, reports geometry through a
// pluggable Layout, and notifies observers of every content mutation.
//
// One mutex serializes all access to the tree. Listeners, observers and
// animation-frame callbacks always run with the mutex released, so they may
// call back into the document. Only mutation ops write to the tree; reading
// a node's links outside the mutex (element.Label, element.InOverlay) is
// safe while the caller holds the editor lock that orders those ops.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/mutation"
)

// ErrUnavailable is returned when the document is not loaded or was closed.
var ErrUnavailable = errors.New("dom: document unavailable")

// Document is the live, mutable page.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	closed bool

	layout Layout
	policy *bluemonday.Policy
	logger *slog.Logger

	nextID    int
	listeners map[string][]listener
	observers []observer
	frames    []func()
}

type listener struct {
	id int
	fn func(*Event)
}

type observer struct {
	id int
	fn func(mutation.Record)
}

// Option configures a Document.
type Option func(*Document)

// WithLayout sets the geometry provider. Default: an empty StaticLayout.
func WithLayout(l Layout) Option { return func(d *Document) { d.layout = l } }

// WithSanitizer sanitizes every SetInnerHTML fragment through p.
func WithSanitizer(p *bluemonday.Policy) Option { return func(d *Document) { d.policy = p } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(d *Document) { d.logger = l } }

// New returns an empty document. Call Load before use.
func New(opts ...Option) *Document {
	d := &Document{
		layout:    NewStaticLayout(),
		logger:    slog.Default(),
		listeners: make(map[string][]listener),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Parse returns a document loaded with text.
func Parse(text string, opts ...Option) (*Document, error) {
	d := New(opts...)
	if err := d.Load(text); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the whole tree with the parsed text and emits a doc_reset
// record. Node references taken before Load are detached afterwards.
func (d *Document) Load(text string) error {
	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("dom: parse: %w", err)
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrUnavailable
	}
	d.root = root
	d.mu.Unlock()

	d.notify(mutation.Record{Op: mutation.OpDocReset})
	return nil
}

// Close detaches the tree and drops every listener and observer. Further
// serialization fails with ErrUnavailable.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.root = nil
	d.listeners = make(map[string][]listener)
	d.observers = nil
	d.frames = nil
}

// Ready reports whether a tree is loaded.
func (d *Document) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root != nil && !d.closed
}

// Root returns the document node, or nil when unavailable.
func (d *Document) Root() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root
}

// Body returns the content root, or nil when unavailable.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return element.Body(d.root)
}

// Node resolves an element path against the current tree.
func (d *Document) Node(p element.Path) (*html.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return nil, element.ErrNotFound
	}
	return element.ResolvePath(d.root, p)
}

// NodeByIdentity finds the element carrying identity tag.
func (d *Document) NodeByIdentity(tag string) (*html.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return nil, element.ErrNotFound
	}
	return element.FindByIdentity(d.root, tag)
}

// IsAttached reports whether n is still part of the current tree.
func (d *Document) IsAttached(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root != nil && d.attachedLocked(n)
}

// Stamp runs the identity stamper over the tree. Identity attributes are
// bookkeeping, so no mutation records are emitted.
func (d *Document) Stamp(s *element.Stamper) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return 0
	}
	return s.StampAll(d.root)
}

// Query returns every node matching sel, overlay nodes included.
func (d *Document) Query(sel cascadia.Selector) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return nil
	}
	return sel.MatchAll(d.root)
}

// Serialize renders the document as a snapshot: the doctype declaration, a
// newline and the <html> element. Overlay nodes are left out.
func (d *Document) Serialize() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil || d.closed {
		return "", ErrUnavailable
	}
	htmlEl := d.root
	if d.root.Type == html.DocumentNode {
		htmlEl = nil
		for c := d.root.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Html {
				htmlEl = c
				break
			}
		}
	}
	if htmlEl == nil {
		return "", ErrUnavailable
	}

	var buf bytes.Buffer
	buf.WriteString(mutation.Doctype + "\n")
	if err := html.Render(&buf, withoutOverlay(htmlEl)); err != nil {
		return "", fmt.Errorf("dom: render: %w", err)
	}
	return buf.String(), nil
}

// withoutOverlay copies the tree under root, leaving out overlay nodes. The
// live tree is not touched.
func withoutOverlay(root *html.Node) *html.Node {
	c := &html.Node{
		Type:      root.Type,
		DataAtom:  root.DataAtom,
		Data:      root.Data,
		Namespace: root.Namespace,
		Attr:      root.Attr,
	}
	for ch := root.FirstChild; ch != nil; ch = ch.NextSibling {
		if element.IsOverlay(ch) {
			continue
		}
		c.AppendChild(withoutOverlay(ch))
	}
	return c
}

// Observe registers fn for every content mutation. Mutations of overlay
// nodes are never reported. The returned function cancels the registration.
func (d *Document) Observe(fn func(mutation.Record)) (cancel func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.observers = append(d.observers, observer{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Document) notify(rec mutation.Record) {
	d.mu.Lock()
	obs := make([]observer, len(d.observers))
	copy(obs, d.observers)
	d.mu.Unlock()

	for _, o := range obs {
		o.fn(rec)
	}
}
