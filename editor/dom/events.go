package dom

import (
	"golang.org/x/net/html"
)

// Event types dispatched by the rendering surface.
const (
	EventClick       = "click"
	EventContextMenu = "contextmenu"
	EventScroll      = "scroll"
	EventResize      = "resize"
)

// Event is a DOM-style event. X and Y are viewport coordinates of the
// pointer for click and contextmenu.
type Event struct {
	Type   string
	Target *html.Node
	X, Y   float64

	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the surface's default action (link navigation,
// button activation, native context menu).
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation prevents the remaining listeners from seeing the event.
func (e *Event) StopPropagation() { e.stopped = true }

// AddEventListener registers fn for events of type typ and returns the
// function removing it. Removing twice is harmless.
func (d *Document) AddEventListener(typ string, fn func(*Event)) (remove func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[typ] = append(d.listeners[typ], listener{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		ls := d.listeners[typ]
		for i, l := range ls {
			if l.id == id {
				d.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns how many listeners are registered for typ.
func (d *Document) ListenerCount(typ string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[typ])
}

// Dispatch delivers ev to the listeners of its type, in registration order,
// until one stops propagation. A text-node target is retargeted to its
// parent element.
func (d *Document) Dispatch(ev *Event) {
	if ev.Target != nil && ev.Target.Type != html.ElementNode {
		ev.Target = ev.Target.Parent
	}

	d.mu.Lock()
	ls := make([]listener, len(d.listeners[ev.Type]))
	copy(ls, d.listeners[ev.Type])
	d.mu.Unlock()

	for _, l := range ls {
		l.fn(ev)
		if ev.stopped {
			return
		}
	}
}

// RequestAnimationFrame queues fn until the next FlushFrames, the point
// where the surface has settled layout for the current turn.
func (d *Document) RequestAnimationFrame(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.frames = append(d.frames, fn)
}

// FlushFrames runs the queued frame callbacks. Callbacks queued while
// flushing run on the next flush. It returns how many ran.
func (d *Document) FlushFrames() int {
	d.mu.Lock()
	frames := d.frames
	d.frames = nil
	d.mu.Unlock()

	for _, fn := range frames {
		fn()
	}
	return len(frames)
}
