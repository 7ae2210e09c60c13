// Package htmlsync bridges direct edits of the live document back into the
// canonical snapshot and the undo history.
//
// Mutations are coalesced with a trailing-edge debounce. Two gates suppress
// syncing: InitializingProperties (the editor is rewriting the document
// itself) and ActivelyEditing (a side-panel field has focus). A gated
// request is dropped and cancels whatever sync was pending, so a snapshot
// that is about to be superseded never commits.
package htmlsync

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/hive/editor/mutation"
	"github.com/hazyhaar/hive/editor/state"
)

// DefaultWindow is the quiet period before a scheduled sync runs.
const DefaultWindow = 500 * time.Millisecond

// Surface is the live document as seen by the engine.
type Surface interface {
	Serialize() (string, error)
	Observe(fn func(mutation.Record)) (cancel func())
}

// History receives committed snapshots.
type History interface {
	Push(snapshot string)
}

// Options tunes the engine.
type Options struct {
	// Window is the debounce window. Default: DefaultWindow.
	Window time.Duration
	// Guard, when set, is held while a debounced sync executes, so that it
	// runs serially with the rest of the editor.
	Guard sync.Locker
	// OnCommit is called after every commit to the canonical store, with
	// whether the snapshot also went to history.
	OnCommit func(snap mutation.Snapshot, pushed bool)
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Engine schedules and performs snapshot syncs. It is safe for concurrent
// use.
type Engine struct {
	surface Surface
	app     *state.App
	history History
	opts    Options
	deb     *debouncer

	mu      sync.Mutex
	stopObs func()

	scheduled   atomic.Int64
	suppressed  atomic.Int64
	cancelled   atomic.Int64
	committed   atomic.Int64
	identical   atomic.Int64
	unavailable atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Scheduled   int64 `json:"scheduled"`
	Suppressed  int64 `json:"suppressed"`
	Cancelled   int64 `json:"cancelled"`
	Committed   int64 `json:"committed"`
	Identical   int64 `json:"identical"`
	Unavailable int64 `json:"unavailable"`
}

// New returns an engine syncing surface into app.Source and history.
func New(surface Surface, app *state.App, history History, opts Options) *Engine {
	opts.defaults()
	e := &Engine{surface: surface, app: app, history: history, opts: opts}
	e.deb = newDebouncer(opts.Window, e.fire)
	return e
}

// Start subscribes to the surface's mutations; each one schedules a sync.
// Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopObs != nil {
		return
	}
	e.stopObs = e.surface.Observe(func(mutation.Record) { e.ScheduleSync() })
}

// Stop unsubscribes and cancels any pending sync. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop := e.stopObs
	e.stopObs = nil
	e.mu.Unlock()
	if stop != nil {
		stop()
	}
	e.deb.cancel()
}

// ScheduleSync requests a sync after the quiet window. Later calls restart
// the window. While a gate is set the request is dropped and any pending
// sync is cancelled.
func (e *Engine) ScheduleSync() {
	if e.app.InitializingProperties.Get() || e.app.ActivelyEditing.Get() {
		e.suppressed.Add(1)
		if e.deb.cancel() {
			e.cancelled.Add(1)
			e.opts.Logger.Debug("htmlsync: pending sync cancelled by gate")
		}
		return
	}
	e.scheduled.Add(1)
	e.deb.trigger()
}

// Cancel drops the pending sync, if any.
func (e *Engine) Cancel() {
	if e.deb.cancel() {
		e.cancelled.Add(1)
	}
}

// Pending reports whether a debounced sync is waiting to run.
func (e *Engine) Pending() bool { return e.deb.isPending() }

// SyncImmediately cancels any pending sync, then extracts the snapshot and
// sets the canonical store without touching history. Gates are ignored.
// It reports whether the store changed.
func (e *Engine) SyncImmediately() bool {
	e.Cancel()
	return e.commit(false)
}

// Flush runs a pending sync now instead of waiting for the window. It is a
// no-op when nothing is pending. The caller must hold the Guard, if any.
func (e *Engine) Flush() bool {
	if !e.deb.cancel() {
		return false
	}
	return e.performSync()
}

func (e *Engine) fire(gen uint64) {
	if g := e.opts.Guard; g != nil {
		g.Lock()
		defer g.Unlock()
	}
	if !e.deb.claim(gen) {
		return
	}
	e.performSync()
}

// performSync commits the current snapshot to the store and history when it
// differs from the canonical one. Only the initialization gate is checked
// here; an edit that ended during the window still syncs.
func (e *Engine) performSync() bool {
	if e.app.InitializingProperties.Get() {
		e.suppressed.Add(1)
		e.opts.Logger.Debug("htmlsync: sync skipped during initialization")
		return false
	}
	return e.commit(true)
}

func (e *Engine) commit(push bool) bool {
	snap, err := e.surface.Serialize()
	if err != nil || snap == "" {
		e.unavailable.Add(1)
		e.opts.Logger.Warn("htmlsync: surface unavailable", "error", err)
		return false
	}
	if snap == e.app.Source.Get() {
		e.identical.Add(1)
		return false
	}
	e.app.Source.Set(snap)
	if push {
		e.history.Push(snap)
	}
	e.committed.Add(1)
	s := mutation.NewSnapshot(snap)
	e.opts.Logger.Debug("htmlsync: committed", "snapshot", s.ID, "hash", s.HTMLHash, "bytes", len(snap), "history", push)
	if e.opts.OnCommit != nil {
		e.opts.OnCommit(s, push)
	}
	return true
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Scheduled:   e.scheduled.Load(),
		Suppressed:  e.suppressed.Load(),
		Cancelled:   e.cancelled.Load(),
		Committed:   e.committed.Load(),
		Identical:   e.identical.Load(),
		Unavailable: e.unavailable.Load(),
	}
}
