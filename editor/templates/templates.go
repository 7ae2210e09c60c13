// Package templates provides the starter pages offered by the editor: a
// built-in set embedded in the binary and, optionally, user templates kept
// in SQLite.
package templates

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/patrickmn/go-cache"

	"github.com/hazyhaar/hive/dbopen"
)

// ErrNotFound is returned for unknown template ids.
var ErrNotFound = errors.New("templates: template not found")

// ErrReadOnly is returned when user templates are written without a store,
// or when a write targets a built-in id.
var ErrReadOnly = errors.New("templates: read-only")

//go:embed files/*.html
var files embed.FS

// Template describes a starter page.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Builtin     bool   `json:"builtin"`
}

var builtins = []struct {
	Template
	file string
}{
	{Template{ID: "landing-page", Name: "Landing Page", Description: "Modern landing page with hero section", Builtin: true}, "landing-page.html"},
	{Template{ID: "blog", Name: "Blog Post", Description: "Simple blog post layout", Builtin: true}, "blog.html"},
	{Template{ID: "portfolio", Name: "Portfolio", Description: "Portfolio showcase page", Builtin: true}, "portfolio.html"},
}

var idRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Schema creates the user template table.
const Schema = `CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	html        TEXT NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// DefaultCacheTTL is how long loaded user templates stay cached.
const DefaultCacheTTL = 5 * time.Minute

// Options configures a Catalog.
type Options struct {
	// DB holds user templates. Nil restricts the catalog to built-ins.
	DB *sql.DB
	// CacheTTL bounds how long a user template stays cached.
	CacheTTL time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

// Catalog lists and loads templates. It is safe for concurrent use.
type Catalog struct {
	db     *sql.DB
	cache  *cache.Cache
	logger *slog.Logger
}

// NewCatalog returns a Catalog. When opts.DB is set its schema must already
// be applied (see Schema and OpenStore).
func NewCatalog(opts Options) *Catalog {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Catalog{
		db:     opts.DB,
		cache:  cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		logger: opts.Logger,
	}
}

// OpenStore opens (creating if needed) the user template database at path.
func OpenStore(path string) (*sql.DB, error) {
	return dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
}

// List returns the templates whose id matches pattern (glob syntax, empty
// matches everything), built-ins first, then user templates by id.
func (c *Catalog) List(ctx context.Context, pattern string) ([]Template, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("templates: pattern %q: %w", pattern, err)
	}

	var out []Template
	for _, b := range builtins {
		if g.Match(b.ID) {
			out = append(out, b.Template)
		}
	}
	if c.db == nil {
		return out, nil
	}

	rows, err := c.db.QueryContext(ctx, `SELECT id, name, description FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	defer rows.Close()
	var user []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("templates: list: %w", err)
		}
		if g.Match(t.ID) {
			user = append(user, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	sort.Slice(user, func(i, j int) bool { return user[i].ID < user[j].ID })
	return append(out, user...), nil
}

// Load returns the markup of template id.
func (c *Catalog) Load(ctx context.Context, id string) (string, error) {
	for _, b := range builtins {
		if b.ID == id {
			data, err := files.ReadFile("files/" + b.file)
			if err != nil {
				return "", fmt.Errorf("templates: load %s: %w", id, err)
			}
			return string(data), nil
		}
	}
	if c.db == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if v, ok := c.cache.Get(id); ok {
		return v.(string), nil
	}
	var text string
	err := c.db.QueryRowContext(ctx, `SELECT html FROM templates WHERE id = ?`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("templates: load %s: %w", id, err)
	}
	c.cache.SetDefault(id, text)
	return text, nil
}

// Put creates or replaces a user template.
func (c *Catalog) Put(ctx context.Context, t Template, text string) error {
	if c.db == nil {
		return ErrReadOnly
	}
	if !idRe.MatchString(t.ID) {
		return fmt.Errorf("templates: invalid id %q", t.ID)
	}
	if isBuiltin(t.ID) {
		return fmt.Errorf("%w: %s is built in", ErrReadOnly, t.ID)
	}
	if text == "" {
		return fmt.Errorf("templates: empty template %s", t.ID)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	err := dbopen.RunTx(ctx, c.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO templates (id, name, description, html, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
				html = excluded.html, updated_at = excluded.updated_at`,
			t.ID, t.Name, t.Description, text, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return fmt.Errorf("templates: put %s: %w", t.ID, err)
	}
	c.cache.Delete(t.ID)
	c.logger.Info("templates: saved", "id", t.ID, "bytes", len(text))
	return nil
}

// Delete removes a user template.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if c.db == nil || isBuiltin(id) {
		return ErrReadOnly
	}
	res, err := dbopen.Exec(ctx, c.db, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("templates: delete %s: %w", id, err)
	}
	c.cache.Delete(id)
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func isBuiltin(id string) bool {
	for _, b := range builtins {
		if b.ID == id {
			return true
		}
	}
	return false
}
