package shared

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageFromQuery(t *testing.T) {
	req := PageFromQuery(url.Values{"page": {"3"}, "per_page": {"10"}})
	assert.Equal(t, 10, req.Limit())
	assert.Equal(t, 20, req.Offset())

	req = PageFromQuery(url.Values{"page": {"-1"}, "per_page": {"1000"}})
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, maxPerPage, req.Limit())
	assert.Equal(t, 0, req.Offset())
}

func TestPageFromQueryCapsHugePage(t *testing.T) {
	req := PageFromQuery(url.Values{"page": {"9223372036854775807"}, "per_page": {"100"}})
	assert.Equal(t, MaxPage, req.Page)
	assert.Positive(t, req.Offset())
	assert.LessOrEqual(t, req.Offset(), math.MaxInt32)

	assert.Positive(t, PageRequest{Page: math.MaxInt, PerPage: 100}.Offset())
}

func TestNewPage(t *testing.T) {
	page := NewPage[int](nil, PageRequest{Page: 2, PerPage: 5}, 11)
	assert.NotNil(t, page.Items)
	assert.Equal(t, Pagination{Page: 2, PerPage: 5, Total: 11, TotalPages: 3}, page.Pagination)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("title", "must be at least 3 characters")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: title must be at least 3 characters", err.Error())
}

func TestListQueryFromURL(t *testing.T) {
	q := ListQueryFromURL(url.Values{"search": {"go"}, "sort": {"name"}, "dir": {"DESC"}, "page": {"2"}})
	assert.Equal(t, "go", q.Search)
	assert.Equal(t, "asc", q.SortDir)
	assert.Equal(t, 2, q.Page.Page)

	q = ListQueryFromURL(url.Values{"dir": {"desc"}})
	assert.Equal(t, "desc", q.SortDir)
}
