// Package identity canonicalizes display names into the identifiers used as
// map keys throughout the bracket controller and rating store.
package identity

import "strings"

// Canonicalize lowercases name and strips everything but letters and digits,
// matching the canonical "userid" form used across the battle server.
func Canonicalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
