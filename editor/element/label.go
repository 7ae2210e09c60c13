package element

import (
	"strings"

	"golang.org/x/net/html"
)

// Label composes the short descriptor shown next to a selected element:
// tag, then "#id", then "[identity]", then ".firstClass". Only the tag is
// mandatory.
func Label(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(n.Data))
	if id, ok := Attr(n, "id"); ok && id != "" {
		b.WriteString("#" + id)
	}
	if tag, ok := Identity(n); ok {
		b.WriteString("[" + tag + "]")
	}
	if cls, ok := Attr(n, "class"); ok {
		if f := strings.Fields(cls); len(f) > 0 {
			b.WriteString("." + f[0])
		}
	}
	return b.String()
}
