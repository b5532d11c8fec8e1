// Package sortname provides script-aware collation for catalog indexes.
// Names and titles are grouped by writing system (Cyrillic, Latin, other)
// before falling back to case-insensitive lexicographic order, so a
// mixed-script library keeps each alphabet contiguous in author and series
// listings.
package sortname

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Script identifies the writing system of a character.
type Script int

const (
	ScriptCyrillic Script = iota
	ScriptLatin
	ScriptOther
)

// Classify returns the script class of r.
//
// Cyrillic covers U+0400..U+04FF plus the U+0500..U+052F supplement, which
// includes Ukrainian Є/І/Ї/Ґ and Russian Ё. Latin covers the ASCII letters,
// the Latin-1 Supplement letters except the multiplication and division
// signs, and Latin Extended-A/B. Everything else (digits, punctuation, CJK,
// Greek, ...) is ScriptOther.
func Classify(r rune) Script {
	switch {
	case r >= 0x0400 && r <= 0x04FF:
		return ScriptCyrillic
	case r >= 0x0500 && r <= 0x052F:
		return ScriptCyrillic
	case r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
		return ScriptLatin
	case r >= 0x00C0 && r <= 0x024F && r != 0x00D7 && r != 0x00F7:
		return ScriptLatin
	default:
		return ScriptOther
	}
}

// priority maps the leading script of s to its position in the collation
// order. cyrillicFirst selects which alphabet sorts before the other; the
// "other" bucket always sorts last.
func priority(s string, cyrillicFirst bool) int {
	switch Classify(firstLetter(s)) {
	case ScriptCyrillic:
		if cyrillicFirst {
			return 0
		}
		return 1
	case ScriptLatin:
		if cyrillicFirst {
			return 1
		}
		return 0
	default:
		return 2
	}
}

// firstLetter returns the first non-space rune of s, or utf8.RuneError when
// s has none.
func firstLetter(s string) rune {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return r
		}
	}
	return utf8.RuneError
}

// Key returns the collation key for s: one script-priority digit followed by
// the lower-cased value. Keys compare correctly with plain string ordering,
// which lets callers store them in a database column and ORDER BY it.
func Key(s string, cyrillicFirst bool) string {
	return string(rune('0'+priority(s, cyrillicFirst))) + strings.ToLower(strings.TrimSpace(s))
}

// Less reports whether a sorts before b under script-aware collation.
func Less(a, b string, cyrillicFirst bool) bool {
	return Key(a, cyrillicFirst) < Key(b, cyrillicFirst)
}

// Sort sorts items in place under script-aware collation.
func Sort(items []string, cyrillicFirst bool) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j], cyrillicFirst)
	})
}

// Bucket returns the alphabetic bucket label for s: the upper-cased first
// letter. Names starting with a digit share the "0-9" bucket and everything
// unclassifiable falls into "#". Bucket labels are what the author and
// series indexes recurse on.
func Bucket(s string) string {
	r := firstLetter(s)
	switch {
	case r == utf8.RuneError:
		return "#"
	case r >= '0' && r <= '9':
		return "0-9"
	case unicode.IsLetter(r):
		return string(unicode.ToUpper(r))
	default:
		return "#"
	}
}
