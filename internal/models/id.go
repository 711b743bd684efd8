package models

import "github.com/google/uuid"

// NewID returns a fresh prefixed identifier, e.g. NewID("q_") -> "q_<uuid>".
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}
