package state

import (
	"reflect"
	"testing"

	"golang.org/x/net/html"
)

func TestValue_SubscribeImmediateAndOrdered(t *testing.T) {
	v := NewValue(1)
	var got []string
	u1 := v.Subscribe(func(n int) { got = append(got, "a", string(rune('0'+n))) })
	v.Subscribe(func(n int) { got = append(got, "b", string(rune('0'+n))) })

	v.Set(2)
	v.Set(2)
	u1()
	u1()
	v.Update(func(n int) int { return n + 1 })

	want := []string{"a", "1", "b", "1", "a", "2", "b", "2", "b", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if v.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", v.Subscribers())
	}
}

func TestValue_SetReportsChange(t *testing.T) {
	v := NewValue("x")
	if v.Set("x") {
		t.Fatal("equal set reported a change")
	}
	if !v.Set("y") || v.Get() != "y" {
		t.Fatal("set lost")
	}
}

func TestValue_SubscriberMayWrite(t *testing.T) {
	v := NewValue(0)
	v.Subscribe(func(n int) {
		if n == 1 {
			v.Set(2)
		}
	})
	v.Set(1)
	if v.Get() != 2 {
		t.Fatalf("value = %d", v.Get())
	}
}

func TestSelectedPointerIdentity(t *testing.T) {
	app := NewApp()
	n := &html.Node{Type: html.ElementNode, Data: "p"}
	calls := 0
	app.Selected.Subscribe(func(*html.Node) { calls++ })
	app.Selected.Set(n)
	app.Selected.Set(n)
	app.Selected.Set(nil)
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestModesAndViewports(t *testing.T) {
	if m, err := ParseMode(" Edit "); err != nil || m != ModeEdit {
		t.Fatalf("ParseMode = %q, %v", m, err)
	}
	if _, err := ParseMode("draw"); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if v, err := ViewportByName("Mobile"); err != nil || v.Width != 375 || v.Height != 667 {
		t.Fatalf("mobile = %+v, %v", v, err)
	}
	if _, err := CustomViewport(0, 10); err == nil {
		t.Fatal("zero width accepted")
	}
	if v, _ := CustomViewport(800, 600); v.Name != "custom" {
		t.Fatalf("custom = %+v", v)
	}
	if app := NewApp(); app.Mode.Get() != ModePreview || app.Viewport.Get() != Desktop {
		t.Fatal("unexpected initial state")
	}
}
