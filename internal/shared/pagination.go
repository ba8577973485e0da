package shared

import (
	"math"
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	// MaxPage keeps (page-1)*perPage inside a Postgres int4 OFFSET.
	MaxPage = math.MaxInt32 / maxPerPage
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = normalizePage(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is the requested slice of a listing.
type PageRequest struct {
	Page    int
	PerPage int
}

// PageFromQuery reads page and per_page, clamping them to sane bounds.
func PageFromQuery(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	page, perPage = normalizePage(page, perPage)
	return PageRequest{Page: page, PerPage: perPage}
}

// Limit returns the SQL LIMIT.
func (p PageRequest) Limit() int {
	_, perPage := normalizePage(p.Page, p.PerPage)
	return perPage
}

// Offset returns the SQL OFFSET.
func (p PageRequest) Offset() int {
	page, perPage := normalizePage(p.Page, p.PerPage)
	return (page - 1) * perPage
}

// Page is a listing slice plus its metadata.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPage assembles a Page, never encoding a nil slice.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Pagination: NewPagination(req.Page, req.PerPage, total)}
}

func normalizePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// ListQuery carries the search, sort and paging options of a taxonomy listing.
type ListQuery struct {
	Search  string
	SortBy  string
	SortDir string
	Page    PageRequest
}

// ListQueryFromURL reads search, sort, dir, page and per_page.
func ListQueryFromURL(q url.Values) ListQuery {
	dir := "asc"
	if q.Get("dir") == "desc" {
		dir = "desc"
	}
	return ListQuery{
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: dir,
		Page:    PageFromQuery(q),
	}
}
