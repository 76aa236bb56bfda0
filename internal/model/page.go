package model

// ResultsPerPage is the number of topics the board shows per search page.
const ResultsPerPage = 25

// FullPageRows is the row count of a full results table: every result
// plus the header row. Only a full page can be followed by another one.
const FullPageRows = ResultsPerPage + 1

// SearchPage records one fetched page of search results.
// It is kept for reporting; the rows themselves are discarded once parsed.
type SearchPage struct {
	// URL is the exact URL that was fetched.
	URL string `json:"url"`

	// Index is the zero-based page counter.
	Index int `json:"index"`

	// RowCount is the number of table rows found, header included.
	RowCount int `json:"row_count"`

	// Records is the number of records the page produced after filtering.
	Records int `json:"records"`
}

// Full reports whether the page had as many rows as a full results table.
func (p SearchPage) Full() bool {
	return p.RowCount == FullPageRows
}

// StartIndex returns the start-index query value for the given page counter.
func StartIndex(page int) int {
	return page * ResultsPerPage
}
