package opds

// SearchQuery carries the recognised search parameters. Feed readers love
// to append tracking noise to the query string, so everything else is
// dropped during binding.
type SearchQuery struct {
	SearchTerm string `query:"searchTerm" json:"searchTerm,omitempty" mod:"trim" validate:"omitempty,max=256"`
	SearchType string `query:"searchType" json:"searchType,omitempty" mod:"trim" validate:"omitempty,oneof=author book series"`
	PageNumber int    `query:"pageNumber" json:"pageNumber,omitempty" validate:"min=0"`
}

// PageQuery carries the page number for listings addressed by name rather
// than by a numbered path segment.
type PageQuery struct {
	PageNumber int `query:"pageNumber" json:"pageNumber,omitempty" validate:"min=0"`
}
