package store

import "github.com/google/uuid"

// NewID returns a UUIDv4 string. All entities share the same ID shape; the
// random UUID only needs to be collision-free, not ordered.
func NewID() string {
	return uuid.NewString()
}
