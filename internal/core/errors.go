package core

import "errors"

// Error codes for wire-level errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeSendFailed     = "send_failed"
	ErrCodeRateLimited    = "rate_limited"
)

var (
	// ErrHandshakeRejected marks a connection attempt whose credential did not verify.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrTransportClosed marks a connection closed by the peer or the network.
	ErrTransportClosed = errors.New("transport closed")
	// ErrSessionReplaced marks a connection evicted by a newer one from the same user.
	ErrSessionReplaced = errors.New("session replaced")
	// ErrServerShutdown marks connections closed because the hub stopped.
	ErrServerShutdown = errors.New("server shutting down")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a CoreError.
func NewError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
