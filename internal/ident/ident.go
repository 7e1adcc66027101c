// Package ident generates opaque identifiers for categories and items.
package ident

import "github.com/google/uuid"

// NewID returns a time-ordered unique identifier. The leading 48 bits are a
// millisecond timestamp and the remainder is random, so IDs created later
// sort after earlier ones.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
