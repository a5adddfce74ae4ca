package core

import "time"

// Message is a persisted direct message as relayed to live connections.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	ImageRef   string
	CreatedAt  time.Time
}
