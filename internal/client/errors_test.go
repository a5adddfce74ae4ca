package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"no peer", ErrNoPeerSelected, "Select a conversation first."},
		{"network", fmt.Errorf("%w: dial tcp: refused", ErrNetworkUnavailable), "Network unavailable. Please try again."},
		{"client api error", fmt.Errorf("%w: %w", ErrStoreWriteFailed, &APIError{Status: 404, Message: "receiver not found"}), "receiver not found"},
		{"server api error", &APIError{Status: 500, Message: "sql: database is locked"}, "Something went wrong."},
		{"rejected", ErrHandshakeRejected, "Please log in again."},
		{"replaced", ErrSessionReplaced, "You signed in somewhere else."},
		{"unknown", errors.New("boom at line 42"), "Something went wrong."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
