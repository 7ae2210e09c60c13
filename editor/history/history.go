// Package history keeps a bounded linear undo/redo sequence of document
// snapshots.
package history

import "sync"

// DefaultCapacity is the number of snapshots kept when none is configured.
const DefaultCapacity = 20

// Manager is a bounded snapshot sequence with a cursor. The cursor is -1
// when empty, otherwise it indexes the snapshot the document currently
// reflects.
type Manager struct {
	mu       sync.Mutex
	entries  []string
	cursor   int
	capacity int
}

// New returns an empty Manager holding at most capacity snapshots.
// A capacity below 1 selects DefaultCapacity.
func New(capacity int) *Manager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Manager{cursor: -1, capacity: capacity}
}

// Push records snapshot as the newest state. Entries after the cursor are
// discarded. On overflow the oldest entry is evicted and the cursor stays
// put; otherwise it advances onto the new entry.
func (m *Manager) Push(snapshot string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries[:m.cursor+1], snapshot)
	if len(m.entries) > m.capacity {
		m.entries = append(m.entries[:0], m.entries[1:]...)
		return
	}
	m.cursor++
}

// Undo steps back and returns the snapshot to restore.
func (m *Manager) Undo() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor <= 0 {
		return "", false
	}
	m.cursor--
	return m.entries[m.cursor], true
}

// Redo steps forward and returns the snapshot to restore.
func (m *Manager) Redo() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.entries)-1 {
		return "", false
	}
	m.cursor++
	return m.entries[m.cursor], true
}

// CanUndo reports whether Undo would succeed.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Clear drops every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.cursor = -1
}

// Current returns the snapshot at the cursor.
func (m *Manager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor < 0 {
		return "", false
	}
	return m.entries[m.cursor], true
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cursor returns the cursor position, -1 when empty.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Capacity returns the configured bound.
func (m *Manager) Capacity() int { return m.capacity }

// Entries returns a copy of the sequence, oldest first.
func (m *Manager) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Manager) state() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		CanUndo: m.cursor > 0,
		CanRedo: m.cursor < len(m.entries)-1,
		Len:     len(m.entries),
		Cursor:  m.cursor,
	}
}
