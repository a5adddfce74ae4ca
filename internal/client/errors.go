package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPeerSelected is returned by conversation operations that need a selected peer.
	ErrNoPeerSelected = errors.New("no peer selected")
	// ErrEmptyMessage is returned for a send with neither text nor image.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrStoreWriteFailed is returned when the server refused to persist a message.
	ErrStoreWriteFailed = errors.New("message was not saved")
	// ErrNetworkUnavailable is returned when the server could not be reached.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrNotAuthenticated is returned by operations that need a logged in session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotConnected is returned when a live connection is needed but none is held.
	ErrNotConnected = errors.New("not connected")
	// ErrHandshakeRejected is returned when the server refused the live connection credential.
	ErrHandshakeRejected = errors.New("live connection rejected")
	// ErrSessionReplaced is reported when another login of the same user took over the live connection.
	ErrSessionReplaced = errors.New("session opened elsewhere")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// UserMessage maps any error to a short text fit for the end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNoPeerSelected):
		return "Select a conversation first."
	case errors.Is(err, ErrEmptyMessage):
		return "Type a message or attach an image."
	case errors.Is(err, ErrNetworkUnavailable):
		return "Network unavailable. Please try again."
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrHandshakeRejected):
		return "Please log in again."
	case errors.Is(err, ErrNotConnected):
		return "Not connected."
	case errors.Is(err, ErrSessionReplaced):
		return "You signed in somewhere else."
	case errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Message != "":
		return apiErr.Message
	default:
		return "Something went wrong."
	}
}
