package core

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventOnlineUsers carries the full online-user snapshot.
	EventOnlineUsers EventKind = iota
	// EventNewMessage carries a persisted message addressed to the connection's user.
	EventNewMessage
	// EventAck confirms a message sent over the live connection.
	EventAck
	// EventPong answers a client ping.
	EventPong
	// EventError notifies the connection about a failed request.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOnlineUsers:
		return "online_users"
	case EventNewMessage:
		return "new_message"
	case EventAck:
		return "ack"
	case EventPong:
		return "pong"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to connections to describe what happened in the system.
type Event struct {
	Kind        EventKind
	OnlineUsers []int64 // EventOnlineUsers
	Message     Message // EventNewMessage, EventAck
	TempID      string  // EventAck
	Error       *CoreError
}
