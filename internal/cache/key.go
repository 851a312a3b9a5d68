// Package cache persists external lookup results keyed by a deterministic
// composite of the lookup kind and its normalized parameters, so equivalent
// queries collide. A confirmed-absent answer is cached as durably as a found
// one; a failed lookup is cached only for a short validity window.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key derives the cache key for one lookup: parameters are trimmed,
// lowercased, diacritic-folded and space-collapsed before hashing, so
// "Rajská zahrada" and "rajska  zahrada" address the same entry.
func Key(kind string, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, strings.ToLower(strings.TrimSpace(kind)))
	for _, p := range params {
		parts = append(parts, normalizeParam(p))
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}

func normalizeParam(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if folded, _, err := transform.String(foldDiacritics, p); err == nil {
		p = folded
	}
	return strings.Join(strings.Fields(p), " ")
}
