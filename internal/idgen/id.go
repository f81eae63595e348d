// Package idgen generates the 128-bit, lexicographically sortable
// identifiers used to name request and response records.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh identifier. It is a UUIDv7: the leading bits encode
// a millisecond timestamp, so ids minted later sort after ids minted
// earlier when compared as plain strings.
func New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// MustNew is New, panicking on failure. uuid.NewV7 only fails if the
// runtime's random source is broken, which call sites treat as fatal.
func MustNew() string {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}
