// Package persist opens and saves the edited page on the local file system.
// When no target can be written natively the page is "downloaded": written
// under a download directory with a unique name.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrCancelled is returned when the user dismissed a file prompt.
	ErrCancelled = errors.New("persist: cancelled")
	// ErrUnsupported is returned when native file access is not available.
	ErrUnsupported = errors.New("persist: native file access unsupported")
)

// DefaultName is the suggested file name for new pages.
const DefaultName = "page.html"

// Handle designates a native file.
type Handle struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// NewHandle builds a Handle for path.
func NewHandle(path string) *Handle {
	return &Handle{Path: path, Name: filepath.Base(path)}
}

// Result describes where a save landed.
type Result struct {
	Path       string `json:"path"`
	Downloaded bool   `json:"downloaded"`
}

// Prompter asks the user for file locations. Implementations return
// ErrCancelled when the user dismisses the prompt and ErrUnsupported when
// they cannot prompt at all.
type Prompter interface {
	PromptOpen(ctx context.Context) (string, error)
	PromptSave(ctx context.Context, suggested string) (string, error)
}

// Options configures a FileStore.
type Options struct {
	// DownloadDir receives download-fallback saves. Default: os.TempDir().
	DownloadDir string
	// Prompter answers Open and SaveAs prompts. Nil means prompting is
	// unsupported.
	Prompter Prompter
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.DownloadDir == "" {
		o.DownloadDir = os.TempDir()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// FileStore tracks the currently open file. It is safe for concurrent use.
type FileStore struct {
	opts Options

	mu      sync.Mutex
	current *Handle
}

// NewFileStore returns a FileStore with no open file.
func NewFileStore(opts Options) *FileStore {
	opts.defaults()
	return &FileStore{opts: opts}
}

// Open reads an HTML file and makes it current. An empty path prompts.
func (s *FileStore) Open(ctx context.Context, path string) (*Handle, string, error) {
	if path == "" {
		if s.opts.Prompter == nil {
			return nil, "", ErrUnsupported
		}
		p, err := s.opts.Prompter.PromptOpen(ctx)
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
	default:
		return nil, "", fmt.Errorf("persist: open %s: not an HTML file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("persist: open: %w", err)
	}
	h := NewHandle(path)
	s.mu.Lock()
	s.current = h
	s.mu.Unlock()
	s.opts.Logger.Info("persist: opened", "path", path, "bytes", len(data))
	return h, string(data), nil
}

// Save writes text to the current file, or behaves like SaveAs when there
// is none. A current file that cannot be written falls back to a download.
func (s *FileStore) Save(ctx context.Context, text string) (Result, error) {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h == nil {
		return s.SaveAs(ctx, text)
	}
	if err := writeFile(h.Path, text); err != nil {
		if !errors.Is(err, fs.ErrPermission) {
			return Result{}, fmt.Errorf("persist: save: %w", err)
		}
		s.opts.Logger.Warn("persist: target not writable, downloading", "path", h.Path, "error", err)
		return s.download(h.Name, text)
	}
	s.opts.Logger.Info("persist: saved", "path", h.Path, "bytes", len(text))
	return Result{Path: h.Path}, nil
}

// SaveAs prompts for a new location, writes text there and makes it
// current. Without a prompter the text is downloaded instead.
func (s *FileStore) SaveAs(ctx context.Context, text string) (Result, error) {
	if s.opts.Prompter == nil {
		return s.download(DefaultName, text)
	}
	path, err := s.opts.Prompter.PromptSave(ctx, s.Name())
	switch {
	case errors.Is(err, ErrUnsupported):
		return s.download(DefaultName, text)
	case err != nil:
		return Result{}, err
	}
	if err := writeFile(path, text); err != nil {
		return Result{}, fmt.Errorf("persist: save as: %w", err)
	}
	s.mu.Lock()
	s.current = NewHandle(path)
	s.mu.Unlock()
	s.opts.Logger.Info("persist: saved as", "path", path, "bytes", len(text))
	return Result{Path: path}, nil
}

// Current returns the open file, or nil.
func (s *FileStore) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	h := *s.current
	return &h
}

// Name returns the current file name, or DefaultName.
func (s *FileStore) Name() string {
	if h := s.Current(); h != nil {
		return h.Name
	}
	return DefaultName
}

// Close forgets the current file.
func (s *FileStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// download writes text under DownloadDir, adding " (n)" before the
// extension when name is taken.
func (s *FileStore) download(name, text string) (Result, error) {
	if err := os.MkdirAll(s.opts.DownloadDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("persist: download dir: %w", err)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(s.opts.DownloadDir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("persist: download: %w", err)
		}
		if _, err := f.WriteString(text); err != nil {
			f.Close()
			return Result{}, fmt.Errorf("persist: download: %w", err)
		}
		if err := f.Close(); err != nil {
			return Result{}, fmt.Errorf("persist: download: %w", err)
		}
		s.opts.Logger.Info("persist: downloaded", "path", path, "bytes", len(text))
		return Result{Path: path, Downloaded: true}, nil
	}
	return Result{}, fmt.Errorf("persist: download: no free name for %s", name)
}

// writeFile replaces path atomically through a sibling temp file.
func writeFile(path, text string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".hive-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		if info.Mode().Perm()&0o200 == 0 {
			return &fs.PathError{Op: "write", Path: path, Err: fs.ErrPermission}
		}
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	return os.Rename(tmp.Name(), path)
}
