// Package isbn holds the one normalization rule applied at every ISBN
// lookup boundary. Scanned barcodes arrive with hyphens, spaces and a
// lowercase check digit that the stored value may not have.
package isbn

import "strings"

// Normalize strips non-alphanumeric characters and upper-cases the rest,
// so "978-0-13x" and "978013X" compare equal.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		}
	}
	return b.String()
}
