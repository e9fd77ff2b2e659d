// Package normalize canonicalizes session and user names for grouping.
// PhoneTrack device names frequently carry accents ("Ági") that other exports
// of the same device spell without ("Agi"); both must land in one group.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops non-spacing marks, and recomposes.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Strip removes diacritics while preserving case: "Ági" -> "Agi".
// Used for display names and output filenames.
func Strip(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// Fold returns the lower-cased, accent-stripped form used as a grouping key.
func Fold(s string) string {
	return strings.ToLower(Strip(s))
}
