// Command hive is the visual HTML page editor.
//
// Usage:
//
//	hive serve [-config hive.yaml] [-addr :8420] [-browser] [page.html]   # HTTP API (+ MCP at /mcp)
//	hive mcp [-config hive.yaml] [page.html]                              # MCP over stdio
//	hive export [-format html|md] [-o out] page.html                      # clean export
//	hive layers page.html                                                 # element tree
//	hive show [-style monokai] page.html                                  # highlighted source
//	hive templates [-pattern glob]                                        # list templates
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hazyhaar/hive/editor"
	"github.com/hazyhaar/hive/editor/export"
	"github.com/hazyhaar/hive/editor/persist"
)

const version = "0.3.0"

const usage = `usage: hive <command> [flags] [page.html]

commands:
  serve      run the HTTP API
  mcp        serve MCP tools on stdin/stdout
  export     write the clean HTML or Markdown export of a page
  layers     print the element tree of a page
  show       print a page's source with syntax highlighting
  templates  list page templates`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "hive:", err)
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
	logLevel   string
	addr       string
	browser    bool
	format     string
	output     string
	style      string
	pattern    string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return flag.ErrHelp
	}
	cmd, args := args[0], args[1:]

	var o options
	fs := flag.NewFlagSet("hive "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to hive.yaml config file")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	switch cmd {
	case "serve":
		fs.StringVar(&o.addr, "addr", "", "listen address (overrides config)")
		fs.BoolVar(&o.browser, "browser", false, "render the page in Chrome (overrides config)")
	case "export":
		fs.StringVar(&o.format, "format", "html", "export format: html or md")
		fs.StringVar(&o.output, "o", "", "output file (default stdout)")
	case "show":
		fs.StringVar(&o.style, "style", "monokai", "chroma style")
	case "templates":
		fs.StringVar(&o.pattern, "pattern", "", "glob filter on template ids")
	case "mcp", "layers":
	case "version":
		fmt.Fprintln(stdout, "hive", version)
		return nil
	default:
		fmt.Fprintln(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := editor.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = editor.LoadConfig(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.browser {
		cfg.Browser.Enabled = true
	}

	// stdout carries the MCP protocol, so logs never go there.
	logger, closeLog := newLogger(cfg, stderr)
	defer closeLog()

	var opts []editor.Option
	if cmd == "serve" {
		opts = append(opts, editor.WithPrompter(persist.NewLinePrompter(stdin, stderr)))
	}
	ed, err := editor.New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer ed.Close()

	page := fs.Arg(0)
	if page != "" {
		if _, err := ed.Open(ctx, page); err != nil {
			return err
		}
	}

	switch cmd {
	case "serve":
		return serve(ctx, ed, cfg, logger)
	case "mcp":
		srv := newMCPServer(ed)
		return srv.Run(ctx, &mcp.StdioTransport{})
	case "export":
		return runExport(ed, page, o, stdout)
	case "layers":
		if page == "" {
			return errors.New("layers: page required")
		}
		_, err := io.WriteString(stdout, ed.LayersTree())
		return err
	case "show":
		if page == "" {
			return errors.New("show: page required")
		}
		return quick.Highlight(stdout, ed.Source(), "html", "terminal256", o.style)
	case "templates":
		list, err := ed.Templates(ctx, o.pattern)
		if err != nil {
			return err
		}
		for _, t := range list {
			fmt.Fprintf(stdout, "%-16s %-14s %s\n", t.ID, t.Name, t.Description)
		}
		return nil
	}
	return nil
}

func runExport(ed *editor.Editor, page string, o options, stdout io.Writer) error {
	if page == "" {
		return errors.New("export: page required")
	}
	f, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	out, err := ed.Export(f)
	if err != nil {
		return err
	}
	if o.output == "" {
		_, err = io.WriteString(stdout, out)
		return err
	}
	return os.WriteFile(o.output, []byte(out), 0o644)
}

func newMCPServer(ed *editor.Editor) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "hive",
		Version: version,
	}, nil)
	ed.RegisterMCP(srv)
	return srv
}

func serve(ctx context.Context, ed *editor.Editor, cfg *editor.Config, logger *slog.Logger) error {
	if cfg.Browser.Enabled {
		if err := ed.StartPreview(ctx); err != nil {
			logger.Warn("hive: preview unavailable, continuing without browser", "error", err)
		}
	}

	var mcpSrv *mcp.Server
	if cfg.Server.MCP {
		mcpSrv = newMCPServer(ed)
	}
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           ed.Handler(mcpSrv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hive: listening", "addr", cfg.Server.Addr, "mcp", cfg.Server.MCP)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("hive: shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

// newLogger builds the JSON logger: to the rotated log file when one is
// configured, otherwise to stderr.
func newLogger(cfg *editor.Config, stderr io.Writer) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	w, closeFn := stderr, func() {}
	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		w, closeFn = rotator, func() { rotator.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn
}
