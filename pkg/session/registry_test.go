package session

import (
	"testing"
	"time"
)

func newTestSession(deviceID string, lastSeen time.Time) *Session {
	return &Session{
		state:    StateActive,
		deviceID: deviceID,
		lastSeen: lastSeen,
	}
}

func TestRegistryCountAndRemove(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestSession("device-a", time.Now()))
	r.Register(newTestSession("device-b", time.Now()))

	if r.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Count())
	}

	r.Remove("device-a")
	if r.Count() != 1 {
		t.Fatalf("expected 1 session after removal, got %d", r.Count())
	}
}

func TestRegistryStaleDetection(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Register(newTestSession("fresh", now))
	r.Register(newTestSession("stale", now.Add(-2*time.Minute)))

	stale := r.Stale(now)
	if len(stale) != 1 || stale[0] != "stale" {
		t.Fatalf("expected only 'stale' to be reported, got %v", stale)
	}
}

func TestRegistryReregisterDisplacesPriorSession(t *testing.T) {
	r := NewRegistry()
	first := newTestSession("device-a", time.Now())
	r.Register(first)
	second := newTestSession("device-a", time.Now())
	r.Register(second)

	if r.Count() != 1 {
		t.Fatalf("expected reconnect to displace, not duplicate, got %d sessions", r.Count())
	}
}
