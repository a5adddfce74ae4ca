package core

import (
	"sync"
	"sync/atomic"
)

// ConnState is the lifecycle position of a live connection.
type ConnState int32

const (
	// StateConnecting is the state before the credential has been verified.
	StateConnecting ConnState = iota
	// StateRejected is terminal: verification failed and the registry was never touched.
	StateRejected
	// StateAuthenticated means the connection is (or is about to be) registered.
	StateAuthenticated
	// StateDisconnected is terminal: teardown ran.
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRejected:
		return "rejected"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Conn is the handle the presence registry stores for one live connection.
// The transport drains Events and watches Done; the hub only ever pushes.
type Conn struct {
	ID     string
	UserID int64
	Name   string

	events chan *Event
	state  atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	// torndown is set by the hub's Run goroutine once the unregister was applied.
	torndown bool
}

// NewConn constructs a handle in the Connecting state.
func NewConn(id string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 32
	}
	return &Conn{
		ID:     id,
		events: make(chan *Event, buffer),
		done:   make(chan struct{}),
	}
}

// Authenticate attaches the resolved identity and moves Connecting -> Authenticated.
// It returns false if the connection already left Connecting.
func (c *Conn) Authenticate(userID int64, name string) bool {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	c.UserID = userID
	c.Name = name
	return true
}

// Reject moves Connecting -> Rejected and closes the handle.
func (c *Conn) Reject(reason error) bool {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateRejected)) {
		return false
	}
	c.Close(reason)
	return true
}

// markDisconnected moves Authenticated -> Disconnected exactly once.
func (c *Conn) markDisconnected() bool {
	return c.state.CompareAndSwap(int32(StateAuthenticated), int32(StateDisconnected))
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// Events is the outbound queue the transport writes to the wire.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

// Push queues an event without blocking. It reports false when the connection is
// closed or its queue is full; callers treat that as a dropped best-effort delivery.
func (c *Conn) Push(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Close signals the transport to shut the connection down. Only the first reason is kept.
func (c *Conn) Close(reason error) {
	c.closeOnce.Do(func() {
		c.closeErr = reason
		close(c.done)
	})
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason passed to the first Close, or nil while open.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}
