// Package translit converts Cyrillic text to a Latin approximation. Download
// file names must stay ASCII because several e-ink readers mangle non-Latin
// names in Content-Disposition headers.
package translit

import (
	"strings"
)

// table maps lowercase Cyrillic letters to their GOST-style Latin
// transliteration. Uppercase input is handled by case-folding the rune and
// title-casing the output.
var table = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "yo", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "j", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g",
}

// String transliterates every Cyrillic letter in s and passes other
// characters through unchanged.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		lower := toLower(r)
		mapped, ok := table[lower]
		if !ok {
			b.WriteRune(r)
			continue
		}
		if lower != r && mapped != "" {
			// Preserve capitalisation: Ё -> Yo, Щ -> Sch.
			b.WriteString(strings.ToUpper(mapped[:1]) + mapped[1:])
		} else {
			b.WriteString(mapped)
		}
	}
	return b.String()
}

// FileName transliterates s and collapses every character outside
// [A-Za-z0-9.-] into a single underscore, producing a name safe for both
// ZIP entries and Content-Disposition.
func FileName(s string) string {
	s = String(s)
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		safe := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-'
		if safe {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// toLower lowers the Cyrillic letters that appear in the table, including
// the ones outside the contiguous А..Я range.
func toLower(r rune) rune {
	switch {
	case r >= 'А' && r <= 'Я':
		return r + 0x20
	case r == 'Ё':
		return 'ё'
	case r == 'Є':
		return 'є'
	case r == 'І':
		return 'і'
	case r == 'Ї':
		return 'ї'
	case r == 'Ґ':
		return 'ґ'
	default:
		return r
	}
}
