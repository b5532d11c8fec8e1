package opds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStructure(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		setting  string
		disabled []string
		enabled  []string
	}{
		{
			name:    "empty setting keeps everything visible",
			setting: "",
			enabled: []string{SectionNewDate, SectionAuthorDetails, SectionGenres},
		},
		{
			name:     "explicit zero hides a section",
			setting:  "newdate:0;genres:1",
			disabled: []string{SectionNewDate},
			enabled:  []string{SectionGenres, SectionNewTitle},
		},
		{
			name:     "spaces around keys and values are tolerated",
			setting:  " author-details : 0 ; sequencesindex : 1 ",
			disabled: []string{SectionAuthorDetails},
			enabled:  []string{SectionSequencesIndex},
		},
		{
			name:    "unknown keys and junk parts are ignored",
			setting: "bogus:0;;no-colon;newtitle:1",
			enabled: []string{SectionNewTitle, SectionNewDate},
		},
		{
			name:     "values other than zero keep the section on",
			setting:  "newdate:off;newtitle:0",
			disabled: []string{SectionNewTitle},
			enabled:  []string{SectionNewDate},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := ParseStructure(tc.setting)
			for _, section := range tc.disabled {
				assert.False(t, s.Enabled(section), section)
			}
			for _, section := range tc.enabled {
				assert.True(t, s.Enabled(section), section)
			}
		})
	}
}
