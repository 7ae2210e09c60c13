package history

import (
	"log/slog"
	"sync"
)

// State is the observable projection of a Manager.
type State struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
	Len     int  `json:"len"`
	Cursor  int  `json:"cursor"`
}

// Store wraps a Manager and publishes its State after every mutator.
type Store struct {
	*Manager

	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func(State)
	order  []int
}

// NewStore wraps m. A nil logger selects slog.Default().
func NewStore(m *Manager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Manager: m, logger: logger, subs: make(map[int]func(State))}
}

// Push records snapshot and publishes.
func (s *Store) Push(snapshot string) {
	s.Manager.Push(snapshot)
	s.publish("push")
}

// Undo steps back and publishes.
func (s *Store) Undo() (string, bool) {
	text, ok := s.Manager.Undo()
	if ok {
		s.publish("undo")
	}
	return text, ok
}

// Redo steps forward and publishes.
func (s *Store) Redo() (string, bool) {
	text, ok := s.Manager.Redo()
	if ok {
		s.publish("redo")
	}
	return text, ok
}

// Clear drops every entry and publishes.
func (s *Store) Clear() {
	s.Manager.Clear()
	s.publish("clear")
}

// State returns the current projection.
func (s *Store) State() State { return s.Manager.state() }

// Subscribe calls fn with the current State now and after every change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	fn(s.State())

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) publish(op string) {
	st := s.State()
	s.logger.Debug("history: "+op,
		"cursor", st.Cursor, "len", st.Len,
		"can_undo", st.CanUndo, "can_redo", st.CanRedo)

	s.mu.Lock()
	fns := make([]func(State), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
