// Package overlay draws the selection highlight over the live document and
// turns pointer events into selection changes. It is active only while the
// editor is in edit mode.
package overlay

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/hive/editor/dom"
	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/mutation"
	"github.com/hazyhaar/hive/editor/state"
)

// LabelOffset is how far above the selected element the label sits.
const LabelOffset = 24

const (
	containerStyle = "position: fixed; top: 0; left: 0; width: 0; height: 0; pointer-events: none; z-index: 2147483646"
	highlightStyle = "position: fixed; top: 0; left: 0; pointer-events: none; box-sizing: border-box; border: 2px solid #3b82f6; background: rgba(59, 130, 246, 0.08); z-index: 2147483646; display: none"
	labelStyle     = "position: fixed; top: 0; left: 0; height: 20px; align-items: center; padding: 0 6px; background: #3b82f6; color: #fff; font: 10px monospace; white-space: nowrap; z-index: 2147483647; display: none"
)

var strays = cascadia.MustCompile("." + element.ClassOverlay + ", ." + element.ClassHighlight + ", ." + element.ClassLabel)

// interactive elements have a default action that a selecting click must
// not trigger.
var interactive = map[atom.Atom]bool{
	atom.A:        true,
	atom.Button:   true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Textarea: true,
}

// Options configures a Controller.
type Options struct {
	// OnSelect is called after a click selects an element.
	OnSelect func(n *html.Node)
	// OnContextMenu is called on a context-menu gesture, after the target
	// was selected, with the pointer position.
	OnContextMenu func(n *html.Node, x, y float64)
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

// Controller keeps the highlight glued to the selected element.
type Controller struct {
	doc  *dom.Document
	app  *state.App
	opts Options

	mu        sync.Mutex
	started   bool
	active    bool
	closed    bool
	container *html.Node
	highlight *html.Node
	label     *html.Node
	removers  []func()
	unsubSel  func()
	unsubMode func()
	unobserve func()
}

// New returns an idle Controller. Call Start to follow the editor mode.
func New(doc *dom.Document, app *state.App, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{doc: doc, app: app, opts: opts}
}

// Start subscribes to the editor mode: entering edit mode activates the
// overlay, leaving it deactivates. It also follows document reloads and
// structural edits.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	unobserve := c.doc.Observe(c.onMutation)
	unsubMode := c.app.Mode.Subscribe(func(m state.Mode) {
		if m == state.ModeEdit {
			c.activate()
		} else {
			c.deactivate()
		}
	})

	c.mu.Lock()
	c.unobserve, c.unsubMode = unobserve, unsubMode
	c.mu.Unlock()
}

// Active reports whether the overlay is mounted and listening.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close tears everything down. It is idempotent and safe on a controller
// that never activated.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubMode, unobserve := c.unsubMode, c.unobserve
	c.unsubMode, c.unobserve = nil, nil
	c.mu.Unlock()

	if unsubMode != nil {
		unsubMode()
	}
	if unobserve != nil {
		unobserve()
	}
	c.deactivate()
}

func (c *Controller) activate() {
	c.mu.Lock()
	if c.active || c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !c.mount() {
		c.opts.Logger.Warn("overlay: document not ready, overlay not mounted")
		return
	}

	removers := []func(){
		c.doc.AddEventListener(dom.EventClick, c.onClick),
		c.doc.AddEventListener(dom.EventContextMenu, c.onContextMenu),
		c.doc.AddEventListener(dom.EventScroll, func(*dom.Event) { c.updateGeometry() }),
		c.doc.AddEventListener(dom.EventResize, func(*dom.Event) { c.updateGeometry() }),
	}
	c.mu.Lock()
	c.removers = removers
	c.active = true
	c.mu.Unlock()

	unsub := c.app.Selected.Subscribe(c.onSelection)
	c.mu.Lock()
	c.unsubSel = unsub
	c.mu.Unlock()
	c.opts.Logger.Debug("overlay: activated")
}

func (c *Controller) deactivate() {
	c.mu.Lock()
	unsub, removers := c.unsubSel, c.removers
	nodes := []*html.Node{c.container, c.highlight, c.label}
	c.unsubSel, c.removers = nil, nil
	c.container, c.highlight, c.label = nil, nil, nil
	wasActive := c.active
	c.active = false
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, rm := range removers {
		rm()
	}
	for _, n := range nodes {
		if n != nil && c.doc.IsAttached(n) {
			_ = c.doc.Remove(n)
		}
	}
	if wasActive {
		c.opts.Logger.Debug("overlay: deactivated")
	}
}

// mount creates the three overlay nodes as the last children of <body>.
func (c *Controller) mount() bool {
	body := c.doc.Body()
	if body == nil {
		return false
	}
	container := dom.NewElement("div",
		html.Attribute{Key: "class", Val: element.ClassOverlay},
		html.Attribute{Key: "style", Val: containerStyle})
	highlight := dom.NewElement("div",
		html.Attribute{Key: "class", Val: element.ClassHighlight},
		html.Attribute{Key: "style", Val: highlightStyle})
	label := dom.NewElement("div",
		html.Attribute{Key: "class", Val: element.ClassLabel},
		html.Attribute{Key: "style", Val: labelStyle})
	for _, n := range []*html.Node{container, highlight, label} {
		if err := c.doc.AppendChild(body, n); err != nil {
			c.opts.Logger.Warn("overlay: mount", "error", err)
			return false
		}
	}
	c.mu.Lock()
	c.container, c.highlight, c.label = container, highlight, label
	c.mu.Unlock()
	return true
}

func (c *Controller) nodes() (highlight, label *html.Node, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlight, c.label, c.active && c.highlight != nil && c.label != nil
}

func (c *Controller) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) onClick(ev *dom.Event) {
	if !c.isActive() {
		return
	}
	t := ev.Target
	if element.InOverlay(t) {
		return
	}
	if t != nil && interactive[t.DataAtom] {
		ev.PreventDefault()
	}
	ev.StopPropagation()

	if t == nil || t.DataAtom == atom.Html || t.DataAtom == atom.Body {
		c.app.Selected.Set(nil)
		return
	}
	if t == c.app.Selected.Get() {
		c.app.Selected.Set(nil)
		return
	}
	c.app.Selected.Set(t)
	if c.opts.OnSelect != nil {
		c.opts.OnSelect(t)
	}
}

func (c *Controller) onContextMenu(ev *dom.Event) {
	if !c.isActive() {
		return
	}
	t := ev.Target
	if element.InOverlay(t) {
		return
	}
	ev.PreventDefault()
	ev.StopPropagation()
	if !element.IsEditable(t) {
		return
	}
	if t != c.app.Selected.Get() {
		c.app.Selected.Set(t)
		if c.opts.OnSelect != nil {
			c.opts.OnSelect(t)
		}
	}
	if c.opts.OnContextMenu != nil {
		c.opts.OnContextMenu(t, ev.X, ev.Y)
	}
}

// onSelection reacts to every selection change.
func (c *Controller) onSelection(n *html.Node) {
	highlight, label, ok := c.nodes()
	if !ok {
		return
	}
	c.purgeStrays()

	_ = c.doc.SetStyle(highlight, "display", "none")
	_ = c.doc.SetStyle(label, "display", "none")
	_ = c.doc.SetText(label, "")

	if n == nil {
		return
	}
	if !c.doc.IsAttached(n) {
		c.opts.Logger.Warn("overlay: selected element left the document")
		c.app.Selected.Set(nil)
		return
	}

	_ = c.doc.SetText(label, element.Label(n))
	_ = c.doc.SetStyle(highlight, "display", "block")
	_ = c.doc.SetStyle(label, "display", "flex")
	c.doc.RequestAnimationFrame(c.updateGeometry)
}

// purgeStrays removes overlay nodes other than the three primaries, left
// behind for instance by a snapshot that was captured with them inside.
func (c *Controller) purgeStrays() {
	c.mu.Lock()
	keep := map[*html.Node]bool{c.container: true, c.highlight: true, c.label: true}
	c.mu.Unlock()

	for _, n := range c.doc.Query(strays) {
		if keep[n] {
			continue
		}
		if err := c.doc.Remove(n); err != nil {
			c.opts.Logger.Debug("overlay: purge", "error", err)
		}
	}
}

// updateGeometry places the highlight over the selected element and the
// label just above it.
func (c *Controller) updateGeometry() {
	highlight, label, ok := c.nodes()
	if !ok {
		return
	}
	sel := c.app.Selected.Get()
	if sel == nil || !c.doc.IsAttached(sel) {
		return
	}
	box, err := c.doc.BoundingBox(sel)
	if err != nil {
		c.opts.Logger.Debug("overlay: bounding box", "error", err)
		return
	}
	_ = c.doc.SetStyle(highlight, "transform", translate(box.Left, box.Top))
	_ = c.doc.SetStyle(highlight, "width", px(box.Width))
	_ = c.doc.SetStyle(highlight, "height", px(box.Height))
	_ = c.doc.SetStyle(label, "transform", translate(box.Left, max(0, box.Top-LabelOffset)))
}

// onMutation remounts after a document reload, revalidates the selection
// after structural edits and repositions after any other edit.
func (c *Controller) onMutation(rec mutation.Record) {
	if !c.isActive() {
		return
	}
	if rec.Op == mutation.OpDocReset {
		c.mu.Lock()
		c.container, c.highlight, c.label = nil, nil, nil
		c.mu.Unlock()
		if !c.mount() {
			c.opts.Logger.Warn("overlay: remount failed")
			return
		}
		if c.app.Selected.Get() != nil {
			c.app.Selected.Set(nil)
		} else {
			c.onSelection(nil)
		}
		return
	}
	sel := c.app.Selected.Get()
	switch {
	case rec.Structural():
		c.onSelection(sel)
	case sel != nil:
		c.doc.RequestAnimationFrame(c.updateGeometry)
	}
}

func translate(x, y float64) string {
	return "translate(" + px(x) + ", " + px(y) + ")"
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
