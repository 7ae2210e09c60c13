package mutation

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/hive/idgen"
)

// Doctype is the declaration every serialized snapshot starts with.
const Doctype = "<!DOCTYPE html>"

// Snapshot is a complete serialized page at one instant. Two snapshots are
// equal iff their HTML is equal; ID and Timestamp are bookkeeping.
type Snapshot struct {
	ID        string `json:"id"`        // UUIDv7
	HTML      string `json:"html"`      // full serialised document, doctype first
	HTMLHash  string `json:"html_hash"` // SHA-256 hex
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// NewSnapshot wraps html into a Snapshot with a fresh ID and hash.
func NewSnapshot(html string) Snapshot {
	return Snapshot{
		ID:        idgen.New(),
		HTML:      html,
		HTMLHash:  HashHTML(html),
		Timestamp: time.Now().UnixMilli(),
	}
}

// Equal compares two snapshots by value.
func (s Snapshot) Equal(o Snapshot) bool { return s.HTML == o.HTML }

// HashHTML returns the SHA-256 hex digest of the serialized text.
func HashHTML(html string) string {
	h := sha256.Sum256([]byte(html))
	return fmt.Sprintf("%x", h)
}

// HasDoctype reports whether text starts with a document-type declaration,
// ignoring case and leading whitespace.
func HasDoctype(text string) bool {
	t := strings.TrimLeft(text, " \t\r\n")
	return len(t) >= 9 && strings.EqualFold(t[:9], "<!doctype")
}

// EnsureDoctype prefixes text with Doctype unless it already has one.
func EnsureDoctype(text string) string {
	if HasDoctype(text) {
		return text
	}
	return Doctype + "\n" + text
}
