package domain

import (
	"github.com/google/uuid"
)

// NewSessionID generates a UUIDv7 string for sessions created on behalf of a
// caller that did not supply one.
func NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}
