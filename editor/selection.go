package editor

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/hive/editor/dom"
	"github.com/hazyhaar/hive/editor/element"
)

// Selection describes the selected element.
type Selection struct {
	Path     string            `json:"path"`
	Identity string            `json:"identity,omitempty"`
	Tag      string            `json:"tag"`
	Label    string            `json:"label"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Box      *dom.Rect         `json:"box,omitempty"`
}

// ContextMenu is the menu opened by the last context-menu gesture.
type ContextMenu struct {
	Path string  `json:"path"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Selected describes the current selection, nil when nothing is selected.
func (e *Editor) Selected() *Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.describe(e.app.Selected.Get())
}

// Menu returns the open context menu, nil when none is open.
func (e *Editor) Menu() *ContextMenu {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.menu == nil {
		return nil
	}
	m := *e.menu
	return &m
}

// SelectPath selects the element at path. The empty path clears the
// selection.
func (e *Editor) SelectPath(path string) (*Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.resolve(path)
	if err != nil {
		return nil, err
	}
	return e.selectLocked(n)
}

// SelectIdentity selects the element carrying identity tag.
func (e *Editor) SelectIdentity(tag string) (*Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.doc.NodeByIdentity(tag)
	if err != nil {
		return nil, fmt.Errorf("editor: select %s: %w", tag, err)
	}
	return e.selectLocked(n)
}

func (e *Editor) selectLocked(n *html.Node) (*Selection, error) {
	if n != nil && !element.IsEditable(n) {
		n = nil
	}
	e.menu = nil
	e.app.Selected.Set(n)
	e.doc.FlushFrames()
	return e.describe(n), nil
}

// ClickPath simulates a pointer click on the element at path, as the
// rendering surface would report it. In edit mode this toggles the
// selection; otherwise it does nothing.
func (e *Editor) ClickPath(path string, x, y float64) (*Selection, error) {
	return e.pointer(dom.EventClick, path, x, y)
}

// ContextMenuPath simulates a context-menu gesture on the element at path.
func (e *Editor) ContextMenuPath(path string, x, y float64) (*Selection, error) {
	return e.pointer(dom.EventContextMenu, path, x, y)
}

func (e *Editor) pointer(typ, path string, x, y float64) (*Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.resolve(path)
	if err != nil {
		return nil, err
	}
	e.doc.Dispatch(&dom.Event{Type: typ, Target: n, X: x, Y: y})
	e.doc.FlushFrames()
	return e.describe(e.app.Selected.Get()), nil
}

// resolve maps a path to a node; the empty path is the content root.
func (e *Editor) resolve(path string) (*html.Node, error) {
	p, err := element.ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	n, err := e.doc.Node(p)
	if err != nil {
		return nil, fmt.Errorf("editor: resolve %q: %w", path, err)
	}
	return n, nil
}

// selection returns the selected node if it is still attached.
func (e *Editor) selection() (*html.Node, error) {
	n := e.app.Selected.Get()
	if n == nil {
		return nil, ErrNoSelection
	}
	if !e.doc.IsAttached(n) {
		e.app.Selected.Set(nil)
		return nil, ErrNoSelection
	}
	return n, nil
}

func (e *Editor) describe(n *html.Node) *Selection {
	if n == nil || !e.doc.IsAttached(n) {
		return nil
	}
	s := &Selection{
		Path:  element.ComputePath(n).String(),
		Tag:   n.Data,
		Label: element.Label(n),
	}
	s.Identity, _ = element.Identity(n)
	for _, a := range n.Attr {
		if a.Key == element.IdentityAttr {
			continue
		}
		if s.Attrs == nil {
			s.Attrs = make(map[string]string)
		}
		s.Attrs[a.Key] = a.Val
	}
	if box, err := e.doc.BoundingBox(n); err == nil {
		s.Box = &box
	}
	return s
}
