// Package id generates identifiers for stored items and requests.
package id

import "github.com/google/uuid"

// Generator produces a new unique identifier on every call.
type Generator func() string

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}
