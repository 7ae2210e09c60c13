package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hazyhaar/hive/editor/dom"
	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/state"
)

//go:embed bridge.js
var bridgeJS string

const bindingName = "__hive_binding"

// boxJS resolves an element path in the page and returns its client rect.
const boxJS = `(path) => {
	let el = document.body;
	for (const seg of path ? path.split('/') : []) {
		const [tag, idx] = seg.split(':');
		const same = Array.from(el.children).filter(c => c.tagName.toLowerCase() === tag);
		el = same[Number(idx)];
		if (!el) return null;
	}
	const r = el.getBoundingClientRect();
	return { top: r.top, left: r.left, width: r.width, height: r.height };
}`

// Options configures a Preview.
type Options struct {
	Viewport state.Viewport
	// Guard, when set, is held while a page event is dispatched into the
	// document.
	Guard sync.Locker
	// Logger overrides the manager's logger.
	Logger *slog.Logger
}

// Preview is a browser tab rendering the edited page. It reports geometry
// to the live document (it implements dom.Layout) and forwards pointer,
// scroll and resize events from the page to it.
type Preview struct {
	mgr    *Manager
	doc    *dom.Document
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	page     *rod.Page
	router   *rod.HijackRouter
	cancel   context.CancelFunc
	last     string
	edit     bool
	viewport state.Viewport
	closed   bool
}

// OpenPreview opens the preview tab on mgr's browser.
func OpenPreview(ctx context.Context, mgr *Manager, doc *dom.Document, opts Options) (*Preview, error) {
	logger := opts.Logger
	if logger == nil {
		logger = mgr.cfg.Logger
	}
	if opts.Viewport.Width == 0 {
		opts.Viewport = state.Desktop
	}
	p := &Preview{mgr: mgr, doc: doc, opts: opts, logger: logger, viewport: opts.Viewport}
	if err := p.open(ctx); err != nil {
		return nil, err
	}
	mgr.OnRecycle(func(*rod.Browser) {
		if err := p.reopen(ctx); err != nil {
			p.logger.Error("browser: preview reopen failed", "error", err)
		}
	})
	return p, nil
}

func (p *Preview) open(ctx context.Context) error {
	b := p.mgr.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if p.mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}

	var router *rod.HijackRouter
	if len(p.mgr.cfg.BlockResources) > 0 {
		router = blockResources(page, p.mgr.cfg.BlockResources)
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		p.logger.Warn("browser: addBinding failed", "error", err)
	}

	lctx, cancel := context.WithCancel(ctx)
	go p.listen(lctx, page)

	p.mu.Lock()
	p.page, p.router, p.cancel = page, router, cancel
	v := p.viewport
	p.mu.Unlock()

	return p.SetViewport(v)
}

func (p *Preview) reopen(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	last := p.last
	p.mu.Unlock()

	if err := p.open(ctx); err != nil {
		return err
	}
	if last != "" {
		return p.Render(last)
	}
	return nil
}

func (p *Preview) currentPage() (*rod.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.page == nil {
		return nil, dom.ErrUnavailable
	}
	return p.page, nil
}

// Render replaces the page content with text and installs the event bridge.
func (p *Preview) Render(text string) error {
	page, err := p.currentPage()
	if err != nil {
		return err
	}
	tree, err := proto.PageGetFrameTree{}.Call(page)
	if err != nil {
		return fmt.Errorf("browser: frame tree: %w", err)
	}
	if err := (proto.PageSetDocumentContent{FrameID: tree.FrameTree.Frame.ID, HTML: text}).Call(page); err != nil {
		return fmt.Errorf("browser: set content: %w", err)
	}
	if _, err := page.Eval(bridgeJS); err != nil {
		return fmt.Errorf("browser: inject bridge: %w", err)
	}

	p.mu.Lock()
	p.last = text
	edit := p.edit
	p.mu.Unlock()
	return p.SetEditMode(edit)
}

// SetEditMode tells the bridge whether clicks select (edit) or behave
// normally.
func (p *Preview) SetEditMode(on bool) error {
	p.mu.Lock()
	p.edit = on
	p.mu.Unlock()
	page, err := p.currentPage()
	if err != nil {
		return err
	}
	if _, err := page.Eval(`(on) => { window.__hive_edit = on }`, on); err != nil {
		return fmt.Errorf("browser: set mode: %w", err)
	}
	return nil
}

// SetViewport resizes the emulated screen.
func (p *Preview) SetViewport(v state.Viewport) error {
	p.mu.Lock()
	p.viewport = v
	p.mu.Unlock()
	page, err := p.currentPage()
	if err != nil {
		return err
	}
	err = proto.EmulationSetDeviceMetricsOverride{
		Width:             v.Width,
		Height:            v.Height,
		DeviceScaleFactor: 1,
		Mobile:            v.Width < state.Tablet.Width,
	}.Call(page)
	if err != nil {
		return fmt.Errorf("browser: viewport: %w", err)
	}
	return nil
}

// BoundingBox implements dom.Layout by locating n's path in the page.
func (p *Preview) BoundingBox(n *html.Node) (dom.Rect, error) {
	page, err := p.currentPage()
	if err != nil {
		return dom.Rect{}, err
	}
	path := element.ComputePath(n).String()
	res, err := page.Eval(boxJS, path)
	if err != nil {
		return dom.Rect{}, fmt.Errorf("browser: bounding box: %w", err)
	}
	if res.Value.Nil() {
		return dom.Rect{}, fmt.Errorf("browser: bounding box %s: %w", path, element.ErrNotFound)
	}
	return dom.Rect{
		Top:    res.Value.Get("top").Num(),
		Left:   res.Value.Get("left").Num(),
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
	}, nil
}

// Screenshot captures the visible page as PNG.
func (p *Preview) Screenshot() ([]byte, error) {
	page, err := p.currentPage()
	if err != nil {
		return nil, err
	}
	return page.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
}

// Close closes the tab. Idempotent.
func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	if p.router != nil {
		_ = p.router.Stop()
	}
	if p.page != nil {
		return p.page.Close()
	}
	return nil
}

// listen receives bridge calls until ctx is cancelled.
func (p *Preview) listen(ctx context.Context, page *rod.Page) {
	page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		p.handle(e.Payload)
	})()
}

// handle dispatches a bridge event. The target path is resolved under the
// Guard so that an edit or reload cannot detach it before dispatch.
func (p *Preview) handle(payload string) {
	if g := p.opts.Guard; g != nil {
		g.Lock()
		defer g.Unlock()
	}
	ev, err := decodeEvent(p.doc, payload)
	if err != nil {
		p.logger.Debug("browser: dropped page event", "error", err)
		return
	}
	p.doc.Dispatch(ev)
	p.doc.FlushFrames()
}

type pageEvent struct {
	Type string  `json:"type"`
	Path string  `json:"path"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

var errUnknownEvent = errors.New("browser: unknown event type")

// decodeEvent turns a bridge payload into a document event. Pointer events
// carry the target's path, resolved against the live document.
func decodeEvent(doc *dom.Document, payload string) (*dom.Event, error) {
	var pe pageEvent
	if err := json.Unmarshal([]byte(payload), &pe); err != nil {
		return nil, fmt.Errorf("browser: decode event: %w", err)
	}
	ev := &dom.Event{Type: pe.Type, X: pe.X, Y: pe.Y}
	switch pe.Type {
	case dom.EventScroll, dom.EventResize:
		return ev, nil
	case dom.EventClick, dom.EventContextMenu:
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, pe.Type)
	}
	path, err := element.ParsePath(pe.Path)
	if err != nil {
		return nil, err
	}
	n, err := doc.Node(path)
	if err != nil {
		return nil, err
	}
	ev.Target = n
	return ev, nil
}
