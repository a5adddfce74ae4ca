package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func mustEvent(t *testing.T, c *Conn, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received on %s", kind, c.ID)
			return nil
		}
	}
}

// lastPresence drains the queue and returns the newest online-users snapshot seen.
func lastPresence(c *Conn) ([]int64, bool) {
	var (
		last []int64
		seen bool
	)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == EventOnlineUsers {
				last, seen = ev.OnlineUsers, true
			}
		default:
			return last, seen
		}
	}
}

func mustClosed(t *testing.T, c *Conn, want error) {
	t.Helper()

	select {
	case <-c.Done():
		if c.Err() != want {
			t.Fatalf("conn %s closed with %v, want %v", c.ID, c.Err(), want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("conn %s was not closed", c.ID)
	}
}

func authedConn(t *testing.T, id string, userID int64) *Conn {
	t.Helper()

	c := NewConn(id, 64)
	if !c.Authenticate(userID, fmt.Sprintf("user-%d", userID)) {
		t.Fatalf("authenticate %s failed", id)
	}
	return c
}

func startHub(t *testing.T) (*Hub, *Registry, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry()
	hub := NewHub(reg, nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, reg, cancel
}

// settle registers a probe connection and returns the online snapshot it was greeted
// with, minus the probe itself. Run handles submissions in order, so that snapshot
// reflects everything queued before the probe. The probe stays registered.
func settle(t *testing.T, hub *Hub, probeUser int64) []int64 {
	t.Helper()

	probe := authedConn(t, fmt.Sprintf("probe-%d", probeUser), probeUser)
	hub.Register(probe)
	ev := mustEvent(t, probe, EventOnlineUsers)

	online := make([]int64, 0, len(ev.OnlineUsers))
	for _, id := range ev.OnlineUsers {
		if id != probeUser {
			online = append(online, id)
		}
	}
	return online
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
