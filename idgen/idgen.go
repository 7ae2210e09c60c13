// Package idgen provides pluggable ID generation for hive.
//
// Constructors across the editor accept a Generator, so the ID strategy is a
// startup-time decision rather than a compile-time one. Two strategies are
// in use: UUIDv7 for snapshots and sessions, and Sequence for the identity
// tags stamped on editable elements.
package idgen

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Sequence returns a Generator producing "<prefix>-<unix ms>-<n>" where n is
// a counter private to the generator. The counter never repeats within a
// process, so two IDs from the same generator never collide even when the
// clock stands still.
func Sequence(prefix string) Generator {
	var n atomic.Uint64
	return SequenceAt(prefix, &n, func() time.Time { return time.Now() })
}

// SequenceAt is Sequence with an explicit counter and clock. Tests use it to
// get deterministic output.
func SequenceAt(prefix string, counter *atomic.Uint64, now func() time.Time) Generator {
	return func() string {
		seq := counter.Add(1) - 1
		return prefix + "-" + strconv.FormatInt(now().UnixMilli(), 10) + "-" + strconv.FormatUint(seq, 10)
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Useful for type-scoped identifiers (e.g. "snap_", "sess_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7. Prefixed variants compose on top.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
