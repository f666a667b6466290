// Package meshid generates the random identifiers the core assigns to
// entities it creates itself (connections, groups). Identifiers received
// from the agent are opaque strings and never pass through this package.
package meshid

import "github.com/google/uuid"

// New returns a random 128-bit identifier rendered as hyphen-grouped hex
// with the standard UUIDv4 version/variant bits set.
func New() string {
	return uuid.New().String()
}

// Valid reports whether s parses as a canonical UUID. Used by registries
// that need to distinguish core-generated ids from agent-assigned ones.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
