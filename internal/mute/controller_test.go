package mute

import (
	"testing"
	"time"

	"coldwatch/internal/events"
)

func TestToggleActivatesThenDeactivates(t *testing.T) {
	c := New(10*time.Second, nil, nil)
	s1 := c.Toggle()
	if !s1.Muted {
		t.Fatalf("expected first toggle to activate mute")
	}
	s2 := c.Toggle()
	if s2.Muted {
		t.Fatalf("expected second toggle to deactivate mute")
	}
}

func TestToggleTwiceReturnsToStartingState(t *testing.T) {
	c := New(10*time.Second, nil, nil)
	start := c.Status()
	c.Toggle()
	c.Toggle()
	end := c.Status()
	if start.Muted != end.Muted {
		t.Fatalf("expected two toggles to return to the starting mute state")
	}
}

func TestForceClearIsIdempotent(t *testing.T) {
	c := New(10*time.Second, nil, nil)
	c.Toggle()
	c.ForceClear()
	c.ForceClear()
	if c.Status().Muted {
		t.Fatalf("expected mute to be inactive after force clear")
	}
}

func TestForceClearOnInactiveEmitsNoEvent(t *testing.T) {
	bus := events.New()
	c := New(10*time.Second, bus, nil)
	ch, unsub := bus.Subscribe()
	defer unsub()

	c.ForceClear()
	select {
	case ev := <-ch:
		t.Fatalf("expected no event from clearing an already-inactive mute, got %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAutoExpiry(t *testing.T) {
	c := New(50*time.Millisecond, nil, nil)
	c.Toggle()
	if !c.Status().Muted {
		t.Fatalf("expected mute to be active immediately after toggle")
	}
	time.Sleep(200 * time.Millisecond)
	c.tick()
	if c.Status().Muted {
		t.Fatalf("expected mute to auto-expire after its duration elapsed")
	}
}

func TestStatusExposesExpiresAtWhenActive(t *testing.T) {
	c := New(10*time.Second, nil, nil)
	status := c.Toggle()
	if status.ExpiresAt == nil {
		t.Fatalf("expected expires_at to be set while active")
	}
}
