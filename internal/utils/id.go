package utils

import "github.com/google/uuid"

// TempIDPrefix marks identifiers generated locally for not-yet-persisted messages.
const TempIDPrefix = "temp-"

// NewID returns a random identifier used to tag live connections in logs.
func NewID() string {
	return uuid.NewString()
}

// NewTempID returns a locally unique temporary message id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}
