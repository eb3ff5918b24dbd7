package models

// Pagination describes one page of an ordered result set.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

// NewPagination computes page metadata. last_page is at least 1.
func NewPagination(page, perPage int, total int64) Pagination {
	if perPage <= 0 {
		perPage = 1
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return Pagination{
		CurrentPage: page,
		LastPage:    last,
		PerPage:     perPage,
		Total:       total,
	}
}

// Page is a slice of items together with its pagination metadata.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// NormalizePage clamps page and perPage into usable values.
func NormalizePage(page, perPage, defaultPerPage, maxPerPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// Offset returns the row offset for a 1-based page.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}
