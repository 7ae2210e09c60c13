package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.History.Capacity != 20 {
		t.Errorf("history.capacity = %d", cfg.History.Capacity)
	}
	if cfg.Sync.Window != 500*time.Millisecond {
		t.Errorf("sync.window = %v", cfg.Sync.Window)
	}
	if cfg.Server.Addr != ":8420" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxBody != 8<<20 {
		t.Errorf("server.max_body = %d", cfg.Server.MaxBody)
	}
	if cfg.Browser.Viewport != "desktop" || cfg.Log.Level != "info" {
		t.Errorf("browser.viewport = %q, log.level = %q", cfg.Browser.Viewport, cfg.Log.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.yaml")
	data := `
history:
  capacity: 5
sync:
  window: 250ms
server:
  addr: 127.0.0.1:9000
browser:
  enabled: true
  viewport: mobile
storage:
  templates_db: /tmp/t.db
  template_cache_ttl: 1m
log:
  level: debug
sanitize_fragments: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.History.Capacity != 5 || cfg.Sync.Window != 250*time.Millisecond {
		t.Errorf("history/sync = %+v / %+v", cfg.History, cfg.Sync)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || !cfg.Browser.Enabled || cfg.Browser.Viewport != "mobile" {
		t.Errorf("server/browser = %+v / %+v", cfg.Server, cfg.Browser)
	}
	if cfg.Storage.TemplatesDB != "/tmp/t.db" || cfg.Storage.TemplateCacheTTL != time.Minute {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Log.Level != "debug" || !cfg.SanitizeFragments {
		t.Errorf("log = %+v, sanitize = %v", cfg.Log, cfg.SanitizeFragments)
	}
	if cfg.Browser.RecycleInterval != 4*time.Hour {
		t.Errorf("defaults not applied: %+v", cfg.Browser)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
	if _, err := Parse([]byte("history: [")); err == nil {
		t.Fatal("bad yaml accepted")
	}
}
