// Package export turns canonical snapshots into the text handed to users:
// clean HTML (identity tags stripped, doctype guaranteed) or Markdown.
package export

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/mutation"
)

// Format is an export format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts "html", "md" and "markdown"; empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// CleanHTML strips identity tags and makes sure the text starts with the
// doctype declaration. Everything else is preserved byte for byte.
func CleanHTML(snapshot string) string {
	return mutation.EnsureDoctype(element.StripIdentities(snapshot))
}

var md = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown converts the clean form of snapshot to Markdown.
func Markdown(snapshot string) (string, error) {
	out, err := md.ConvertString(CleanHTML(snapshot))
	if err != nil {
		return "", fmt.Errorf("export: markdown: %w", err)
	}
	return out, nil
}

// Render exports snapshot in format f.
func Render(snapshot string, f Format) (string, error) {
	switch f {
	case FormatHTML:
		return CleanHTML(snapshot), nil
	case FormatMarkdown:
		return Markdown(snapshot)
	}
	return "", fmt.Errorf("export: unknown format %q", f)
}
