package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("conflict")
)

// User represents an account in the system.
type User struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message represents a persisted direct message.
// At least one of Text and ImageRef is non-empty.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	ImageRef   string
	CreatedAt  time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, fullName, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfilePic replaces the user's profile picture reference.
	UpdateProfilePic(ctx context.Context, id int64, ref string) (*User, error)

	// ListUsersExcept lists every user except the given one, ordered by name.
	ListUsersExcept(ctx context.Context, id int64) ([]*User, error)

	// ListChatPartners lists users that exchanged at least one message with the given one,
	// most recent conversation first.
	ListChatPartners(ctx context.Context, id int64) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists msg and fills in its ID and CreatedAt.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListConversation returns messages exchanged between two users in send order.
	ListConversation(ctx context.Context, userA, userB int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
