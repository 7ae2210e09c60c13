package editor

import (
	"github.com/xlab/treeprint"
	"golang.org/x/net/html"

	"github.com/hazyhaar/hive/editor/element"
)

// Layer is one element of the layers panel.
type Layer struct {
	Path     string  `json:"path"`
	Label    string  `json:"label"`
	Selected bool    `json:"selected,omitempty"`
	Children []Layer `json:"children,omitempty"`
}

// Layers returns the element tree under <body>, overlay nodes excluded.
func (e *Editor) Layers() []Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	body := e.doc.Body()
	if body == nil {
		return nil
	}
	return e.layers(body)
}

func (e *Editor) layers(parent *html.Node) []Layer {
	sel := e.app.Selected.Get()
	var out []Layer
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || element.IsOverlay(c) {
			continue
		}
		out = append(out, Layer{
			Path:     element.ComputePath(c).String(),
			Label:    element.Label(c),
			Selected: c == sel,
			Children: e.layers(c),
		})
	}
	return out
}

// LayersTree renders Layers as an indented tree. The selected element is
// marked with an asterisk.
func (e *Editor) LayersTree() string {
	tree := treeprint.NewWithRoot("body")
	addLayers(tree, e.Layers())
	return tree.String()
}

func addLayers(t treeprint.Tree, layers []Layer) {
	for _, l := range layers {
		v := l.Label
		if l.Selected {
			v += " *"
		}
		if len(l.Children) == 0 {
			t.AddMetaNode(l.Path, v)
			continue
		}
		addLayers(t.AddMetaBranch(l.Path, v), l.Children)
	}
}
