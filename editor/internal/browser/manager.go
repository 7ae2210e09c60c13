// Package browser drives the Chrome instance used as the visual rendering
// surface: lifecycle (launch or connect, memory and age based recycling) and
// the preview tab that renders the edited page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("browser: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local Chrome.
	RemoteURL string
	// Headful shows the browser window instead of running headless.
	Headful bool
	// Stealth opens preview tabs with go-rod/stealth evasions.
	Stealth bool
	// BlockResources lists resource types the preview must not load.
	BlockResources []string
	// MemoryLimit in bytes of JS heap before recycling. Default: 1GB.
	MemoryLimit int64
	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration
	// CheckInterval is how often age and heap are checked. Default: 30s.
	CheckInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Status describes the browser behind the preview.
type Status struct {
	Running   bool          `json:"running"`
	Remote    bool          `json:"remote"`
	Uptime    time.Duration `json:"uptime_ns"`
	Recycles  int           `json:"recycles"`
	HeapBytes int64         `json:"heap_bytes"` // last sampled JS heap, 0 before the first check
}

// Manager owns the Chrome process. Preview tabs re-open themselves through
// OnRecycle when the process is replaced.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	browser  *rod.Browser
	lnch     *launcher.Launcher
	startAt  time.Time
	recycles int
	heap     int64
	closed   bool
	onNew    []func(*rod.Browser)
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// OnRecycle registers fn to run with the new browser after every recycle.
func (m *Manager) OnRecycle(fn func(*rod.Browser)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNew = append(m.onNew, fn)
}

// Start launches or connects to Chrome and starts the recycle monitor,
// which runs until ctx is done.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if err := m.connectLocked(); err != nil {
		return nil, err
	}
	go m.monitor(ctx)
	return m.browser, nil
}

// Browser returns the current browser, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Status reports the current process state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Status{
		Running:   m.browser != nil,
		Remote:    m.cfg.RemoteURL != "",
		Recycles:  m.recycles,
		HeapBytes: m.heap,
	}
	if s.Running {
		s.Uptime = time.Since(m.startAt)
	}
	return s
}

// Recycle replaces the Chrome process and hands the new browser to the
// OnRecycle callbacks, outside the manager lock.
func (m *Manager) Recycle() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt), "recycles", m.recycles)
	m.cleanup()
	if err := m.connectLocked(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.recycles++
	b := m.browser
	callbacks := slices.Clone(m.onNew)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(b)
	}
	return nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanup()
	return nil
}

// connectLocked launches (or dials) Chrome and records it as current.
func (m *Manager) connectLocked() error {
	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(!m.cfg.Headful).
			Set("hide-scrollbars").
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL, m.lnch = u, l
		m.cfg.Logger.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	} else {
		m.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser, m.startAt, m.heap = b, time.Now(), 0
	return nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

func (m *Manager) monitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if reason := m.check(); reason != "" {
			m.cfg.Logger.Info("browser: "+reason, "limit", m.cfg.MemoryLimit, "interval", m.cfg.RecycleInterval)
			if err := m.Recycle(); err != nil {
				m.cfg.Logger.Error("browser: recycle failed", "error", err)
				if errors.Is(err, ErrClosed) {
					return
				}
			}
		}
	}
}

// check samples the process and returns why it should be recycled, or "".
func (m *Manager) check() string {
	m.mu.RLock()
	b, startAt := m.browser, m.startAt
	m.mu.RUnlock()
	if b == nil {
		return ""
	}
	if time.Since(startAt) > m.cfg.RecycleInterval {
		return "recycle interval reached"
	}

	used, err := heapUsage(b)
	if err != nil {
		m.cfg.Logger.Debug("browser: heap check failed", "error", err)
		return ""
	}
	m.mu.Lock()
	m.heap = used
	m.mu.Unlock()
	if used > m.cfg.MemoryLimit {
		return "memory limit exceeded"
	}
	return ""
}

// heapUsage reads the JS heap of the preview tab, the only page hive opens.
func heapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("browser: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
