// Package localize provides the UI string tables for feed titles and the
// browser view, plus number-aware plural selection for Slavic languages.
package localize

import (
	"strconv"
	"strings"
)

// Localizer resolves UI string keys for one language. The zero value behaves
// like English.
type Localizer struct {
	lang  string
	table map[string]string
}

// New returns a Localizer for an IETF language tag. Only the primary subtag
// is considered; unknown languages fall back to English.
func New(lang string) *Localizer {
	lang = strings.ToLower(strings.SplitN(lang, "-", 2)[0])
	table, ok := tables[lang]
	if !ok {
		lang, table = "en", tables["en"]
	}
	return &Localizer{lang: lang, table: table}
}

// Lang returns the resolved primary language subtag.
func (l *Localizer) Lang() string {
	if l == nil || l.lang == "" {
		return "en"
	}
	return l.lang
}

// Text returns the localized string for key. Unknown keys fall back to the
// English table and then to the key itself, so a missing translation never
// produces an empty feed title.
func (l *Localizer) Text(key string) string {
	if l != nil && l.table != nil {
		if s, ok := l.table[key]; ok {
			return s
		}
	}
	if s, ok := tables["en"][key]; ok {
		return s
	}
	return key
}

// Plural selects the grammatical form of a counted noun. Slavic languages
// (ru, uk, pl) take three forms (one, few, many): n%10==1 outside the teens
// selects one, n%10 in 2..4 outside 12..14 selects few, everything else is
// many, and n >= 1000 is always many. Other languages take two forms.
func (l *Localizer) Plural(n int, forms ...string) string {
	if len(forms) == 0 {
		return ""
	}
	last := forms[len(forms)-1]

	switch l.Lang() {
	case "ru", "uk", "pl":
		if n < 0 {
			n = -n
		}
		if n >= 1000 {
			return last
		}
		switch {
		case n%10 == 1 && n%100 != 11:
			return forms[0]
		case n%10 >= 2 && n%10 <= 4 && !(n%100 >= 12 && n%100 <= 14):
			if len(forms) > 1 {
				return forms[1]
			}
			return last
		default:
			return last
		}
	default:
		if n == 1 || n == -1 {
			return forms[0]
		}
		return last
	}
}

// BookCount renders "N book(s)" with the right plural form for the language.
func (l *Localizer) BookCount(n int) string {
	var word string
	switch l.Lang() {
	case "ru":
		word = l.Plural(n, "книга", "книги", "книг")
	case "uk":
		word = l.Plural(n, "книга", "книги", "книг")
	case "pl":
		word = l.Plural(n, "książka", "książki", "książek")
	default:
		word = l.Plural(n, "book", "books")
	}
	return strconv.Itoa(n) + " " + word
}

// AuthorCount renders "N author(s)" for index bucket entries.
func (l *Localizer) AuthorCount(n int) string {
	var word string
	switch l.Lang() {
	case "ru":
		word = l.Plural(n, "автор", "автора", "авторов")
	case "uk":
		word = l.Plural(n, "автор", "автори", "авторів")
	case "pl":
		word = l.Plural(n, "autor", "autorzy", "autorów")
	default:
		word = l.Plural(n, "author", "authors")
	}
	return strconv.Itoa(n) + " " + word
}

// SeriesCount renders "N series" for index bucket entries.
func (l *Localizer) SeriesCount(n int) string {
	var word string
	switch l.Lang() {
	case "ru":
		word = l.Plural(n, "серия", "серии", "серий")
	case "uk":
		word = l.Plural(n, "серія", "серії", "серій")
	case "pl":
		word = l.Plural(n, "seria", "serie", "serii")
	default:
		word = "series"
	}
	return strconv.Itoa(n) + " " + word
}
