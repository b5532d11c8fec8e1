// Package soundex implements a bilingual English/Russian phonetic code used
// to match author and title queries that are typed with spelling mistakes.
// The script is detected from the first letter of the word, so "Dostoevsky"
// and "Достоевский" each run through their own consonant map.
package soundex

import (
	"sort"
	"strings"
	"unicode"
)

// CodeLength is the fixed size of a phonetic code: the leading letter plus
// five group digits, zero-padded.
const CodeLength = 6

// latinGroups is the classic Soundex consonant grouping.
var latinGroups = map[rune]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// cyrillicGroups mirrors the Latin grouping onto Russian phonetics: labials,
// gutturals/sibilants, dentals, л, nasals, р.
var cyrillicGroups = map[rune]byte{
	'б': '1', 'п': '1', 'ф': '1', 'в': '1',
	'г': '2', 'к': '2', 'х': '2', 'ж': '2', 'з': '2', 'с': '2', 'ц': '2', 'ч': '2', 'ш': '2', 'щ': '2',
	'д': '3', 'т': '3',
	'л': '4',
	'м': '5', 'н': '5',
	'р': '6',
}

// Code computes the phonetic code of the first word of s. The result is
// always CodeLength characters: the upper-cased first letter followed by the
// consonant group digits with adjacent duplicates removed, the digits sorted,
// and zero padding. Sorting the digits makes the code stable under consonant
// transposition ("Kristen"/"Kirsten" collide on purpose). Returns "" for
// input with no letters.
func Code(s string) string {
	word := firstWord(s)
	if word == "" {
		return ""
	}

	runes := []rune(strings.ToLower(word))
	groups := latinGroups
	if runes[0] >= 'а' && runes[0] <= 'я' || runes[0] == 'ё' {
		groups = cyrillicGroups
	}

	var digits []byte
	var prev byte
	for i, r := range runes {
		d, ok := groups[r]
		if !ok {
			// Vowels and unmapped letters break duplicate runs, matching
			// standard Soundex behaviour for separated double consonants.
			prev = 0
			continue
		}
		if i == 0 || d == prev {
			prev = d
			continue
		}
		digits = append(digits, d)
		prev = d
		if len(digits) == CodeLength-1 {
			break
		}
	}

	sort.Slice(digits, func(i, j int) bool { return digits[i] < digits[j] })

	var b strings.Builder
	b.WriteRune(unicode.ToUpper(runes[0]))
	b.Write(digits)
	for b.Len() < CodeLength+leadByteAdjust(runes[0]) {
		b.WriteByte('0')
	}
	return b.String()
}

// Match reports whether two strings share a phonetic code.
func Match(a, b string) bool {
	ca, cb := Code(a), Code(b)
	return ca != "" && ca == cb
}

// firstWord extracts the first run of letters from s.
func firstWord(s string) string {
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start < 0 {
		return ""
	}
	return s[start:]
}

// leadByteAdjust compensates Builder.Len for multi-byte leading letters so
// padding always produces CodeLength visible characters.
func leadByteAdjust(lead rune) int {
	return len(string(unicode.ToUpper(lead))) - 1
}
