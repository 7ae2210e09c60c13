// Package editor is the visual page editor: it owns the live document and
// wires selection, sync, history, files and templates around it.
//
// Every operation runs under one editor lock, which the sync engine also
// takes when a debounced sync fires and the browser bridge takes while it
// dispatches page events. Edits are therefore serial.
//
// Usage:
//
//	ed, err := editor.New(cfg, logger)
//	defer ed.Close()
//	ed.LoadTemplate(ctx, "landing-page")
//	ed.SetMode(state.ModeEdit)
//	ed.SelectPath("section:0/h1:0")
//	ed.ApplyStyle("color", "red")
//	ed.Commit()
//	ed.Undo()
package editor

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/hive/editor/dom"
	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/history"
	"github.com/hazyhaar/hive/editor/htmlsync"
	"github.com/hazyhaar/hive/editor/internal/browser"
	"github.com/hazyhaar/hive/editor/mutation"
	"github.com/hazyhaar/hive/editor/overlay"
	"github.com/hazyhaar/hive/editor/persist"
	"github.com/hazyhaar/hive/editor/state"
	"github.com/hazyhaar/hive/editor/templates"
	"github.com/hazyhaar/hive/idgen"
)

var (
	// ErrNoSelection is returned by element operations when nothing is
	// selected.
	ErrNoSelection = errors.New("editor: no element selected")
	// ErrInvalidPath is returned for element paths that do not parse.
	ErrInvalidPath = errors.New("editor: invalid path")
	// ErrNoPreview is returned by preview operations before StartPreview.
	ErrNoPreview = errors.New("editor: no preview attached")
)

// blankPage is loaded by New so the editor always has a document.
const blankPage = "<!DOCTYPE html>\n<html><head><title>Untitled</title></head><body></body></html>"

// Editor is a single editing session.
type Editor struct {
	cfg     *Config
	logger  *slog.Logger
	session string

	mu        sync.Mutex
	app       *state.App
	history   *history.Store
	doc       *dom.Document
	stamper   *element.Stamper
	sync      *htmlsync.Engine
	overlay   *overlay.Controller
	templates *templates.Catalog
	files     *persist.FileStore

	ownDB    *sql.DB
	tmplDB   *sql.DB
	prompter persist.Prompter
	layout   dom.Layout

	menu    *ContextMenu
	current mutation.Snapshot // last canonical commit or load
	browser *browser.Manager
	preview *browser.Preview
	closed  bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithPrompter answers file prompts (Open without a path, SaveAs).
func WithPrompter(p persist.Prompter) Option { return func(e *Editor) { e.prompter = p } }

// WithTemplatesDB stores user templates in db instead of the configured file.
// The schema is applied by New.
func WithTemplatesDB(db *sql.DB) Option { return func(e *Editor) { e.tmplDB = db } }

// WithLayout sets the geometry provider used until a browser preview is
// attached.
func WithLayout(l dom.Layout) Option { return func(e *Editor) { e.layout = l } }

// WithStamper overrides the identity stamper.
func WithStamper(s *element.Stamper) Option { return func(e *Editor) { e.stamper = s } }

// New builds an editor holding a blank page. A nil cfg uses DefaultConfig.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Editor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	session := idgen.New()
	e := &Editor{
		cfg:     cfg,
		session: session,
		logger:  logger.With("session", session),
		app:     state.NewApp(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.stamper == nil {
		e.stamper = element.NewStamper(nil)
	}

	if vp, err := state.ViewportByName(cfg.Browser.Viewport); err == nil {
		e.app.Viewport.Set(vp)
	}

	docOpts := []dom.Option{dom.WithLogger(e.logger)}
	if e.layout != nil {
		docOpts = append(docOpts, dom.WithLayout(e.layout))
	}
	if cfg.SanitizeFragments {
		docOpts = append(docOpts, dom.WithSanitizer(fragmentPolicy()))
	}
	e.doc = dom.New(docOpts...)
	e.history = history.NewStore(history.New(cfg.History.Capacity), e.logger)

	e.sync = htmlsync.New(e.doc, e.app, e.history, htmlsync.Options{
		Window:   cfg.Sync.Window,
		Guard:    &e.mu,
		OnCommit: e.onCommit,
		Logger:   e.logger,
	})
	e.overlay = overlay.New(e.doc, e.app, overlay.Options{
		OnSelect:      e.onSelect,
		OnContextMenu: e.onContextMenu,
		Logger:        e.logger,
	})

	if err := e.openTemplates(); err != nil {
		return nil, err
	}
	e.files = persist.NewFileStore(persist.Options{
		DownloadDir: cfg.Storage.DownloadDir,
		Prompter:    e.prompter,
		Logger:      e.logger,
	})

	if err := e.replace(blankPage, loadReset); err != nil {
		e.closeStores()
		return nil, err
	}
	e.sync.Start()
	e.overlay.Start()
	e.logger.Info("editor: ready", "history", cfg.History.Capacity, "window", cfg.Sync.Window)
	return e, nil
}

func (e *Editor) openTemplates() error {
	db := e.tmplDB
	if db != nil {
		if _, err := db.Exec(templates.Schema); err != nil {
			return fmt.Errorf("editor: templates schema: %w", err)
		}
	} else if path := e.cfg.Storage.TemplatesDB; path != "" {
		var err error
		db, err = templates.OpenStore(path)
		if err != nil {
			return fmt.Errorf("editor: templates store: %w", err)
		}
		e.ownDB = db
	}
	e.templates = templates.NewCatalog(templates.Options{
		DB:       db,
		CacheTTL: e.cfg.Storage.TemplateCacheTTL,
		Logger:   e.logger,
	})
	return nil
}

// fragmentPolicy keeps user-generated markup plus inline styles and classes.
func fragmentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style", "class").Globally()
	return p
}

// Session returns the session ID used in logs.
func (e *Editor) Session() string { return e.session }

// App exposes the observable editor state.
func (e *Editor) App() *state.App { return e.app }

// Source returns the canonical snapshot.
func (e *Editor) Source() string { return e.app.Source.Get() }

// History returns the undo/redo availability.
func (e *Editor) History() history.State { return e.history.State() }

// SubscribeHistory calls fn with the current history state and after every
// change.
func (e *Editor) SubscribeHistory(fn func(history.State)) (unsubscribe func()) {
	return e.history.Subscribe(fn)
}

// SnapshotInfo identifies the canonical snapshot without its text.
type SnapshotInfo struct {
	ID        string `json:"id"`
	HTMLHash  string `json:"html_hash"`
	Timestamp int64  `json:"timestamp"`
	Bytes     int    `json:"bytes"`
}

// Snapshot describes the canonical snapshot, as last committed or loaded.
func (e *Editor) Snapshot() SnapshotInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.current
	return SnapshotInfo{ID: s.ID, HTMLHash: s.HTMLHash, Timestamp: s.Timestamp, Bytes: len(s.HTML)}
}

// SyncStats returns the sync engine counters.
func (e *Editor) SyncStats() htmlsync.Stats { return e.sync.Stats() }

type loadKind int

const (
	loadReset   loadKind = iota // new page: history restarts from it
	loadRestore                 // undo/redo: history untouched
	loadCode                    // code view: recorded as an edit
)

// Load replaces the page with text and restarts the history from it.
func (e *Editor) Load(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replace(text, loadReset)
}

// SetSourceFromCode applies text typed in the code view. Unlike Load it is
// an undoable edit.
func (e *Editor) SetSourceFromCode(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replace(text, loadCode)
}

// replace rewrites the live document under the initialization gate. The
// caller holds e.mu.
func (e *Editor) replace(text string, kind loadKind) error {
	if e.closed {
		return dom.ErrUnavailable
	}
	e.app.InitializingProperties.Set(true)
	e.app.Loading.Set(true)
	defer func() {
		e.app.Loading.Set(false)
		e.app.InitializingProperties.Set(false)
	}()

	e.sync.Cancel()
	e.app.Selected.Set(nil)
	e.menu = nil
	if err := e.doc.Load(text); err != nil {
		return fmt.Errorf("editor: load: %w", err)
	}
	stamped := e.doc.Stamp(e.stamper)
	snap, err := e.doc.Serialize()
	if err != nil {
		return fmt.Errorf("editor: load: %w", err)
	}

	prev := e.app.Source.Get()
	e.app.Source.Set(snap)
	e.current = mutation.NewSnapshot(snap)
	switch kind {
	case loadReset:
		e.history.Clear()
		e.history.Push(snap)
	case loadCode:
		if snap != prev {
			e.history.Push(snap)
		}
	}
	e.logger.Debug("editor: document loaded", "bytes", len(snap), "stamped", stamped, "kind", kind)
	e.renderPreview(snap)
	return nil
}

// Undo restores the previous snapshot. A pending edit is committed first so
// that it is the one undone. It reports whether anything was undone.
func (e *Editor) Undo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.Flush()
	snap, ok := e.history.Undo()
	if !ok {
		return false, nil
	}
	return true, e.replace(snap, loadRestore)
}

// Redo re-applies the next snapshot. It reports whether anything was redone.
func (e *Editor) Redo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.Flush()
	snap, ok := e.history.Redo()
	if !ok {
		return false, nil
	}
	return true, e.replace(snap, loadRestore)
}

// Commit syncs pending edits now, to the canonical source and the history.
// It reports whether a new snapshot was recorded.
func (e *Editor) Commit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sync.Flush()
}

// SetMode switches between preview, edit and code. Edit mode mounts the
// selection overlay; code mode first commits the pending edit.
func (e *Editor) SetMode(m state.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m == state.ModeCode {
		e.sync.Flush()
	}
	if m != state.ModeEdit {
		e.app.Selected.Set(nil)
		e.menu = nil
	}
	e.app.Mode.Set(m)
	if e.preview != nil {
		if err := e.preview.SetEditMode(m == state.ModeEdit); err != nil {
			e.logger.Warn("editor: preview mode", "error", err)
		}
	}
}

// Mode returns the current mode.
func (e *Editor) Mode() state.Mode { return e.app.Mode.Get() }

// SetViewport resizes the rendering surface and repositions the overlay.
func (e *Editor) SetViewport(v state.Viewport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.app.Viewport.Set(v)
	if e.preview != nil {
		if err := e.preview.SetViewport(v); err != nil {
			e.logger.Warn("editor: preview viewport", "error", err)
		}
	}
	e.doc.Dispatch(&dom.Event{Type: dom.EventResize})
	e.doc.FlushFrames()
}

// SetActivelyEditing marks a side-panel text field as focused. While set,
// edits are not synced.
func (e *Editor) SetActivelyEditing(on bool) { e.app.ActivelyEditing.Set(on) }

func (e *Editor) onCommit(s mutation.Snapshot, pushed bool) {
	e.current = s
	e.logger.Debug("editor: committed", "snapshot", s.ID, "history", pushed)
	e.renderPreview(s.HTML)
}

func (e *Editor) onSelect(n *html.Node) {
	e.menu = nil
	e.logger.Debug("editor: selected", "path", element.ComputePath(n).String())
}

func (e *Editor) onContextMenu(n *html.Node, x, y float64) {
	e.menu = &ContextMenu{Path: element.ComputePath(n).String(), X: x, Y: y}
}

// Close stops syncing, tears the overlay down and releases the browser and
// the template store. Idempotent.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.sync.Stop()
	e.overlay.Close()
	e.closePreview()
	e.files.Close()
	e.doc.Close()
	return e.closeStores()
}

func (e *Editor) closeStores() error {
	if e.ownDB != nil {
		return e.ownDB.Close()
	}
	return nil
}
