package opds

import "strings"

// Catalog section keys recognised in the OPDSStructure setting.
const (
	SectionNewDate          = "newdate"
	SectionNewTitle         = "newtitle"
	SectionAuthorsIndex     = "authorsindex"
	SectionAuthorDetails    = "author-details"
	SectionAuthorSeries     = "author-series"
	SectionAuthorNoSeries   = "author-no-series"
	SectionAuthorAlphabetic = "author-alphabetic"
	SectionAuthorByDate     = "author-by-date"
	SectionSequencesIndex   = "sequencesindex"
	SectionGenres           = "genres"
)

var knownSections = map[string]bool{
	SectionNewDate:          true,
	SectionNewTitle:         true,
	SectionAuthorsIndex:     true,
	SectionAuthorDetails:    true,
	SectionAuthorSeries:     true,
	SectionAuthorNoSeries:   true,
	SectionAuthorAlphabetic: true,
	SectionAuthorByDate:     true,
	SectionSequencesIndex:   true,
	SectionGenres:           true,
}

// Structure holds the per-section visibility switches of the catalog menu.
// A hidden section is dropped from the root feed and served as 404 when
// requested directly.
type Structure struct {
	disabled map[string]bool
}

// ParseStructure parses a "newdate:1;genres:0" style setting. Unknown keys
// are ignored and sections missing from the string stay enabled, so an
// empty setting shows the full menu.
func ParseStructure(s string) Structure {
	disabled := map[string]bool{}
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !knownSections[key] {
			continue
		}
		if strings.TrimSpace(value) == "0" {
			disabled[key] = true
		}
	}
	return Structure{disabled: disabled}
}

// Enabled reports whether a section is visible.
func (st Structure) Enabled(section string) bool {
	return !st.disabled[section]
}
