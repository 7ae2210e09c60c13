package editor

import (
	"github.com/hazyhaar/hive/editor/dom"
)

// Edits below act on the selected element and go through the live
// document, so they are synced like any other edit: after the debounce
// window, or at once with Commit.

// ApplyStyle sets one inline style property of the selection. An empty
// value removes the property.
func (e *Editor) ApplyStyle(property, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return err
	}
	return e.doc.SetStyle(n, property, value)
}

// Style returns an inline style property of the selection.
func (e *Editor) Style(property string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return "", err
	}
	return e.doc.Style(n, property), nil
}

// SetAttr sets an attribute of the selection. An empty value removes it.
func (e *Editor) SetAttr(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return err
	}
	if value == "" {
		return e.doc.RemoveAttr(n, name)
	}
	return e.doc.SetAttr(n, name, value)
}

// SetText replaces the text content of the selection.
func (e *Editor) SetText(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return err
	}
	return e.doc.SetText(n, text)
}

// SetInnerHTML replaces the children of the selection with a parsed
// fragment, sanitized when the editor is configured to.
func (e *Editor) SetInnerHTML(fragment string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return err
	}
	if err := e.doc.SetInnerHTML(n, fragment); err != nil {
		return err
	}
	e.doc.Stamp(e.stamper)
	return nil
}

// Insert adds a new <tag> relative to the selection, or as the last child
// of <body> when nothing is selected, and selects it.
func (e *Editor) Insert(tag string, pos dom.Position) (*Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref, err := e.selection()
	if err != nil {
		ref, pos = e.doc.Body(), dom.PositionChild
	}
	n, err := e.doc.Insert(ref, tag, pos)
	if err != nil {
		return nil, err
	}
	e.doc.Stamp(e.stamper)
	return e.selectLocked(n)
}

// Duplicate copies the selection right after itself and selects the copy.
func (e *Editor) Duplicate() (*Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return nil, err
	}
	clone, err := e.doc.Duplicate(n)
	if err != nil {
		return nil, err
	}
	e.doc.Stamp(e.stamper)
	return e.selectLocked(clone)
}

// Move relocates the selection. Up and down swap with a sibling; before,
// after and into need the path of a target element. The selection follows
// the moved element.
func (e *Editor) Move(dir dom.Direction, target string) (*Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return nil, err
	}
	t := n
	if dir != dom.MoveUp && dir != dom.MoveDown {
		if t, err = e.resolve(target); err != nil {
			return nil, err
		}
	}
	if err := e.doc.Move(n, dir, t); err != nil {
		return nil, err
	}
	e.doc.FlushFrames()
	return e.describe(n), nil
}

// Delete removes the selection and clears it.
func (e *Editor) Delete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.selection()
	if err != nil {
		return err
	}
	if err := e.doc.Remove(n); err != nil {
		return err
	}
	e.app.Selected.Set(nil)
	e.menu = nil
	return nil
}
