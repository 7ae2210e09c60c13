package editor

import (
	"context"

	"github.com/hazyhaar/hive/editor/export"
	"github.com/hazyhaar/hive/editor/persist"
	"github.com/hazyhaar/hive/editor/templates"
)

// Open loads an HTML file and makes it the save target. An empty path asks
// the prompter. The history restarts from the opened page.
func (e *Editor) Open(ctx context.Context, path string) (*persist.Handle, error) {
	h, text, err := e.files.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := e.Load(text); err != nil {
		return nil, err
	}
	return h, nil
}

// Save writes the page to the current file, or asks for one. The saved text
// is the export form: identities stripped, doctype first.
func (e *Editor) Save(ctx context.Context) (persist.Result, error) {
	return e.files.Save(ctx, e.savedText())
}

// SaveAs asks for a new file and writes the page there.
func (e *Editor) SaveAs(ctx context.Context) (persist.Result, error) {
	return e.files.SaveAs(ctx, e.savedText())
}

// FileName returns the name of the current file, or the default name.
func (e *Editor) FileName() string { return e.files.Name() }

// SyncedSource commits a pending edit to the source and the history, then
// returns the text of the live document. Reading never moves the canonical
// source ahead of the history.
func (e *Editor) SyncedSource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveSource()
}

// liveSource flushes the pending sync and serializes the document, falling
// back to the canonical source when the document is unavailable. The caller
// holds e.mu.
func (e *Editor) liveSource() string {
	e.sync.Flush()
	text, err := e.doc.Serialize()
	if err != nil {
		return e.app.Source.Get()
	}
	return text
}

// savedText is the export form written by Save and SaveAs. A pending edit is
// committed to the history first; saving then syncs the source even while
// an edit gate is set.
func (e *Editor) savedText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.Flush()
	e.sync.SyncImmediately()
	return export.CleanHTML(e.app.Source.Get())
}

// Export renders the page in format f.
func (e *Editor) Export(f export.Format) (string, error) {
	return export.Render(e.SyncedSource(), f)
}

// Templates lists the templates whose id matches the glob pattern.
func (e *Editor) Templates(ctx context.Context, pattern string) ([]templates.Template, error) {
	return e.templates.List(ctx, pattern)
}

// LoadTemplate replaces the page with template id. The history restarts.
func (e *Editor) LoadTemplate(ctx context.Context, id string) error {
	text, err := e.templates.Load(ctx, id)
	if err != nil {
		return err
	}
	return e.Load(text)
}

// SaveTemplate stores the current page as user template t.
func (e *Editor) SaveTemplate(ctx context.Context, t templates.Template) error {
	return e.templates.Put(ctx, t, export.CleanHTML(e.SyncedSource()))
}

// DeleteTemplate removes user template id.
func (e *Editor) DeleteTemplate(ctx context.Context, id string) error {
	return e.templates.Delete(ctx, id)
}
