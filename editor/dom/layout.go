package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Rect is an on-screen bounding box in viewport coordinates, the way
// getBoundingClientRect reports it.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout supplies geometry for nodes of the live document.
type Layout interface {
	BoundingBox(n *html.Node) (Rect, error)
}

// BoundingBox asks the configured Layout for the box of n.
func (d *Document) BoundingBox(n *html.Node) (Rect, error) {
	d.mu.Lock()
	l := d.layout
	d.mu.Unlock()
	return l.BoundingBox(n)
}

// SetLayout swaps the geometry provider, e.g. once a browser preview is up.
func (d *Document) SetLayout(l Layout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout = l
}

// StaticLayout is a Layout with explicitly assigned page-relative boxes and
// a scroll offset. Nodes without a box report a zero Rect.
type StaticLayout struct {
	mu      sync.Mutex
	boxes   map[*html.Node]Rect
	scrollX float64
	scrollY float64
}

// NewStaticLayout returns an empty StaticLayout.
func NewStaticLayout() *StaticLayout {
	return &StaticLayout{boxes: make(map[*html.Node]Rect)}
}

// Set assigns the page-relative box of n.
func (s *StaticLayout) Set(n *html.Node, r Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxes[n] = r
}

// ScrollTo moves the viewport; boxes are reported relative to it.
func (s *StaticLayout) ScrollTo(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollX, s.scrollY = x, y
}

// BoundingBox implements Layout.
func (s *StaticLayout) BoundingBox(n *html.Node) (Rect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.boxes[n]
	r.Top -= s.scrollY
	r.Left -= s.scrollX
	return r, nil
}
