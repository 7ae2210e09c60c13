package history

import (
	"fmt"
	"reflect"
	"testing"
)

func TestPush_BoundedFIFO(t *testing.T) {
	for _, capacity := range []int{1, 2, 5, 20} {
		m := New(capacity)
		for i := 0; i < capacity*3; i++ {
			m.Push(fmt.Sprintf("s%d", i))
			if m.Len() > capacity {
				t.Fatalf("cap %d: len %d after %d pushes", capacity, m.Len(), i+1)
			}
		}
		entries := m.Entries()
		want := fmt.Sprintf("s%d", capacity*2)
		if entries[0] != want {
			t.Fatalf("cap %d: oldest = %s, want %s", capacity, entries[0], want)
		}
		if cur, _ := m.Current(); cur != fmt.Sprintf("s%d", capacity*3-1) {
			t.Fatalf("cap %d: current = %s", capacity, cur)
		}
	}
}

func TestPush_TruncatesRedo(t *testing.T) {
	m := New(10)
	m.Push("a")
	m.Push("b")
	m.Push("c")
	m.Undo()
	m.Push("d")

	if got := m.Entries(); !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Fatalf("entries = %v", got)
	}
	if cur, _ := m.Current(); cur != "d" {
		t.Fatalf("current = %s", cur)
	}
	if m.CanRedo() {
		t.Fatal("redo available after push")
	}
	if _, ok := m.Redo(); ok {
		t.Fatal("redo succeeded")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m := New(5)
	for _, s := range []string{"a", "b", "c", "d"} {
		m.Push(s)
	}
	m.Undo()
	before, _ := m.Current()

	if _, ok := m.Undo(); !ok {
		t.Fatal("undo failed")
	}
	got, ok := m.Redo()
	if !ok || got != before {
		t.Fatalf("redo = %q, %v; want %q", got, ok, before)
	}
}

func TestCapacityScenario(t *testing.T) {
	m := New(3)
	for _, s := range []string{"v1", "v2", "v3", "v4"} {
		m.Push(s)
	}
	if got := m.Entries(); !reflect.DeepEqual(got, []string{"v2", "v3", "v4"}) {
		t.Fatalf("entries = %v", got)
	}
	if cur, _ := m.Current(); cur != "v4" {
		t.Fatalf("current = %s", cur)
	}
	if !m.CanUndo() || m.CanRedo() {
		t.Fatalf("CanUndo=%v CanRedo=%v", m.CanUndo(), m.CanRedo())
	}
	if got, _ := m.Undo(); got != "v3" {
		t.Fatalf("undo = %s", got)
	}
}

func TestEdges(t *testing.T) {
	m := New(0)
	if m.Capacity() != DefaultCapacity {
		t.Fatalf("capacity = %d", m.Capacity())
	}
	if m.Cursor() != -1 || m.CanUndo() || m.CanRedo() {
		t.Fatal("empty manager not at rest")
	}
	if _, ok := m.Undo(); ok {
		t.Fatal("undo on empty")
	}
	m.Push("only")
	if _, ok := m.Undo(); ok {
		t.Fatal("undo past first entry")
	}
	if m.Cursor() != 0 {
		t.Fatalf("cursor moved on failed undo: %d", m.Cursor())
	}
	m.Clear()
	if m.Len() != 0 || m.Cursor() != -1 {
		t.Fatalf("after clear: len=%d cursor=%d", m.Len(), m.Cursor())
	}
	if _, ok := m.Current(); ok {
		t.Fatal("current after clear")
	}
}

func TestDeterminism(t *testing.T) {
	run := func() ([]string, []string) {
		m := New(3)
		var out []string
		for _, op := range []string{"p1", "p2", "u", "p3", "p4", "p5", "u", "u", "u", "r", "p6"} {
			switch op {
			case "u":
				s, ok := m.Undo()
				out = append(out, fmt.Sprint(s, ok))
			case "r":
				s, ok := m.Redo()
				out = append(out, fmt.Sprint(s, ok))
			default:
				m.Push(op)
			}
		}
		return m.Entries(), out
	}
	e1, o1 := run()
	e2, o2 := run()
	if !reflect.DeepEqual(e1, e2) || !reflect.DeepEqual(o1, o2) {
		t.Fatalf("runs differ: %v/%v vs %v/%v", e1, o1, e2, o2)
	}
}

func TestStorePublishes(t *testing.T) {
	s := NewStore(New(3), nil)
	var states []State
	unsub := s.Subscribe(func(st State) { states = append(states, st) })

	s.Push("a")
	s.Push("b")
	s.Undo()
	s.Undo() // no-op, not published
	s.Redo()
	s.Clear()
	unsub()
	unsub()
	s.Push("c")

	want := []State{
		{Cursor: -1},
		{Len: 1, Cursor: 0},
		{CanUndo: true, Len: 2, Cursor: 1},
		{CanRedo: true, Len: 2, Cursor: 0},
		{CanUndo: true, Len: 2, Cursor: 1},
		{Cursor: -1},
	}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("states:\n got %+v\nwant %+v", states, want)
	}
}
