package state

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Mode is the editor mode. Only ModeEdit shows the selection overlay.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeEdit    Mode = "edit"
	ModeCode    Mode = "code"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePreview, ModeEdit, ModeCode:
		return m, nil
	}
	return "", fmt.Errorf("state: unknown mode %q", s)
}

// Viewport is the size of the rendering surface.
type Viewport struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Viewport presets.
var (
	Desktop = Viewport{Name: "desktop", Width: 1920, Height: 1080}
	Tablet  = Viewport{Name: "tablet", Width: 768, Height: 1024}
	Mobile  = Viewport{Name: "mobile", Width: 375, Height: 667}
)

// Presets lists the named viewports.
var Presets = []Viewport{Desktop, Tablet, Mobile}

// CustomViewport returns a free-size viewport.
func CustomViewport(width, height int) (Viewport, error) {
	if width <= 0 || height <= 0 {
		return Viewport{}, fmt.Errorf("state: invalid viewport %dx%d", width, height)
	}
	return Viewport{Name: "custom", Width: width, Height: height}, nil
}

// ViewportByName resolves a preset.
func ViewportByName(name string) (Viewport, error) {
	for _, v := range Presets {
		if v.Name == strings.ToLower(name) {
			return v, nil
		}
	}
	return Viewport{}, fmt.Errorf("state: unknown viewport %q", name)
}

// App is the application-state container shared by the editor components.
type App struct {
	Source   *Value[string]
	Mode     *Value[Mode]
	Selected *Value[*html.Node]
	Viewport *Value[Viewport]

	// InitializingProperties is set while the editor rewrites the document
	// programmatically; no sync may be scheduled or committed meanwhile.
	InitializingProperties *Value[bool]
	// ActivelyEditing is set while a text field of the side panel has focus.
	ActivelyEditing *Value[bool]

	Loading       *Value[bool]
	LayersOpen    *Value[bool]
	InspectPaused *Value[bool]
}

// NewApp returns the initial state: preview mode, desktop viewport, nothing
// selected.
func NewApp() *App {
	return &App{
		Source:                 NewValue(""),
		Mode:                   NewValue(ModePreview),
		Selected:               NewValue[*html.Node](nil),
		Viewport:               NewValue(Desktop),
		InitializingProperties: NewValue(false),
		ActivelyEditing:        NewValue(false),
		Loading:                NewValue(false),
		LayersOpen:             NewValue(false),
		InspectPaused:          NewValue(false),
	}
}
