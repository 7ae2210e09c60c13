package editor

import (
	"context"
	"fmt"

	"github.com/hazyhaar/hive/editor/dom"
	"github.com/hazyhaar/hive/editor/internal/browser"
	"github.com/hazyhaar/hive/editor/state"
)

// StartPreview launches (or connects to) Chrome as configured under
// browser, renders the page in a tab and makes that tab the geometry
// source and event origin of the live document.
func (e *Editor) StartPreview(ctx context.Context) error {
	bc := e.cfg.Browser
	mgr := browser.NewManager(browser.Config{
		RemoteURL:       bc.Remote,
		Headful:         bc.Headful,
		Stealth:         bc.Stealth,
		BlockResources:  bc.BlockResources,
		MemoryLimit:     bc.MemoryLimit,
		RecycleInterval: bc.RecycleInterval,
		Logger:          e.logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("editor: preview: %w", err)
	}
	p, err := browser.OpenPreview(ctx, mgr, e.doc, browser.Options{
		Viewport: e.app.Viewport.Get(),
		Guard:    &e.mu,
		Logger:   e.logger,
	})
	if err != nil {
		mgr.Close()
		return fmt.Errorf("editor: preview: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.browser, e.preview = mgr, p
	e.doc.SetLayout(p)
	if err := p.SetEditMode(e.app.Mode.Get() == state.ModeEdit); err != nil {
		e.logger.Warn("editor: preview mode", "error", err)
	}
	e.renderPreview(e.app.Source.Get())
	return nil
}

// Screenshot captures the preview tab as PNG.
func (e *Editor) Screenshot() ([]byte, error) {
	e.mu.Lock()
	p := e.preview
	e.mu.Unlock()
	if p == nil {
		return nil, ErrNoPreview
	}
	return p.Screenshot()
}

// PreviewStatus reports the browser behind the preview.
func (e *Editor) PreviewStatus() (browser.Status, error) {
	e.mu.Lock()
	mgr := e.browser
	e.mu.Unlock()
	if mgr == nil {
		return browser.Status{}, ErrNoPreview
	}
	return mgr.Status(), nil
}

// renderPreview shows snapshot in the preview tab, if any. The caller holds
// e.mu.
func (e *Editor) renderPreview(snapshot string) {
	if e.preview == nil {
		return
	}
	if err := e.preview.Render(snapshot); err != nil {
		e.logger.Warn("editor: preview render", "error", err)
		return
	}
	// Boxes moved with the new layout.
	e.doc.Dispatch(&dom.Event{Type: dom.EventResize})
	e.doc.FlushFrames()
}

// closePreview releases the tab and the browser. The caller holds e.mu.
func (e *Editor) closePreview() {
	if e.preview != nil {
		if err := e.preview.Close(); err != nil {
			e.logger.Debug("editor: preview close", "error", err)
		}
		e.preview = nil
	}
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.logger.Debug("editor: browser close", "error", err)
		}
		e.browser = nil
	}
}
