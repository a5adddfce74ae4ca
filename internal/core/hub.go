package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub is the realtime gateway core. A single Run goroutine owns every presence
// mutation and every presence broadcast, so register and unregister events are
// applied in the order the transport submitted them.
type Hub struct {
	presence   Presence
	register   chan *Conn
	unregister chan *Conn
	stopped    chan struct{}
	log        zerolog.Logger
}

// NewHub creates a hub over the given presence registry. A nil registry gets a fresh one.
func NewHub(presence Presence, logger *zerolog.Logger) *Hub {
	if presence == nil {
		presence = NewRegistry()
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "hub").Logger()
	}
	return &Hub{
		presence:   presence,
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		stopped:    make(chan struct{}),
		log:        l,
	}
}

// Run processes registrations until ctx is cancelled, then closes every live connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Register submits an authenticated connection. The handle must have passed
// Conn.Authenticate; anything else is ignored.
func (h *Hub) Register(c *Conn) bool {
	if c.State() != StateAuthenticated {
		return false
	}
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		c.Close(ErrServerShutdown)
		return false
	}
}

// Unregister tears the connection down. It runs at most once per connection no
// matter how many close triggers call it.
func (h *Hub) Unregister(c *Conn) {
	if !c.markDisconnected() {
		return
	}
	select {
	case h.unregister <- c:
	case <-h.stopped:
		// Run is gone; nothing else mutates presence any more.
		h.presence.UnregisterIf(c.UserID, c)
	}
}

// Deliver pushes a persisted message to its receiver if the receiver is online.
// Offline receivers and full queues drop the event: the store keeps the message.
func (h *Hub) Deliver(msg Message) bool {
	c, ok := h.presence.Lookup(msg.ReceiverID)
	if !ok {
		return false
	}
	if !c.Push(&Event{Kind: EventNewMessage, Message: msg}) {
		h.log.Debug().Str("conn_id", c.ID).Int64("user_id", msg.ReceiverID).Msg("dropping message event for unavailable connection")
		return false
	}
	return true
}

// Stopped is closed once Run has returned and every connection was closed.
func (h *Hub) Stopped() <-chan struct{} {
	return h.stopped
}

// Online returns the current online user ids.
func (h *Hub) Online() []int64 {
	return h.presence.Snapshot()
}

func (h *Hub) handleRegister(c *Conn) {
	// A teardown submitted after this register is still queued behind it, so the
	// handle is registered even if it already left Authenticated.
	if previous := h.presence.Register(c.UserID, c); previous != nil && previous != c {
		h.log.Info().Int64("user_id", c.UserID).Str("old_conn_id", previous.ID).Str("conn_id", c.ID).Msg("session replaced")
		previous.Close(ErrSessionReplaced)
	}
	if c.torndown {
		h.presence.UnregisterIf(c.UserID, c)
	}

	h.log.Debug().Int64("user_id", c.UserID).Str("conn_id", c.ID).Msg("connection registered")
	h.broadcastPresence()
}

func (h *Hub) handleUnregister(c *Conn) {
	c.torndown = true
	if !h.presence.UnregisterIf(c.UserID, c) {
		// Already replaced by a newer connection; the online set did not change.
		return
	}

	h.log.Debug().Int64("user_id", c.UserID).Str("conn_id", c.ID).Msg("connection unregistered")
	h.broadcastPresence()
}

// broadcastPresence sends the full online snapshot to every registered connection.
// A connection that cannot take the event is skipped; the rest still get it.
func (h *Hub) broadcastPresence() {
	snapshot := h.presence.Snapshot()
	for _, c := range h.presence.Handles() {
		ev := &Event{Kind: EventOnlineUsers, OnlineUsers: snapshot}
		if !c.Push(ev) {
			h.log.Warn().Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("dropping presence event for slow consumer")
		}
	}
}

func (h *Hub) shutdown() {
	for _, c := range h.presence.Handles() {
		h.presence.Unregister(c.UserID)
		c.Close(ErrServerShutdown)
	}
	h.log.Info().Msg("hub stopped")
}
