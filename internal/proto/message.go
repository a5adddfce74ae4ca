package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypePing = "ping"
	InboundTypeSend = "send"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventOnlineUsers = "online-users-changed"
	EventNewMessage  = "new-message"
	EventAck         = "ack"
	EventPong        = "pong"
)

// SendData is the advisory send request carried over the live connection.
type SendData struct {
	ReceiverID int64  `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	TempID     string `json:"tempId,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// NewEvent builds an event envelope around payload.
func NewEvent(event string, payload any) (Outbound, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Outbound{}, err
	}
	return Outbound{Type: OutboundTypeEvent, Event: event, Data: data}, nil
}

// NewErrorOutbound builds an error envelope.
func NewErrorOutbound(code, msg string) Outbound {
	return Outbound{Type: OutboundTypeError, Error: &Error{Code: code, Msg: msg}}
}

// MessageDTO is a persisted message as seen by clients.
type MessageDTO struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID         int64  `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// AckData confirms a send made over the live connection.
type AckData struct {
	TempID  string     `json:"tempId,omitempty"`
	Message MessageDTO `json:"message"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
