// Package pagination reads page, limit and sort parameters from history queries and
// describes the resulting page back to the client. Defaults can be tuned per endpoint
// with functional options.
package pagination

import (
	"net/url"
	"strconv"
)

// Params represents pagination parameters extracted from a request.
type Params struct {
	Page   int32  // Current page number (1-based)
	Limit  int32  // Number of items per page
	Offset int32  // Offset of the first item, derived from Page and Limit
	Sort   string // "newest", "oldest", "asc" or "desc"
}

// Meta describes a returned page.
type Meta struct {
	Page       int32 `json:"page"`
	Limit      int32 `json:"limit"`
	Total      int32 `json:"total"`
	TotalPages int32 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
}

const (
	// MaxLimit is the maximum number of items allowed per page
	MaxLimit int32 = 100
	// DefaultPage is the default page number when not specified
	DefaultPage int32 = 1
	// DefaultLimit is the history page size when not specified
	DefaultLimit int32 = 50
	// DefaultSort is the default sort order when not specified
	DefaultSort = "newest"
)

func calculateOffset(page, limit int32) int32 {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

func isValidSort(sort string) bool {
	switch sort {
	case "newest", "oldest", "asc", "desc":
		return true
	default:
		return false
	}
}

// Option configures the defaults applied before the query is read.
type Option func(*Params)

// WithDefaultLimit sets the limit used when the query has none. Non-positive values are ignored.
func WithDefaultLimit(limit int32) Option {
	return func(p *Params) {
		if limit > 0 {
			p.Limit = limit
		}
	}
}

// WithDefaultSort sets the sort used when the query has none. Invalid values are ignored.
func WithDefaultSort(sort string) Option {
	return func(p *Params) {
		if isValidSort(sort) {
			p.Sort = sort
		}
	}
}

// Parse extracts pagination parameters from URL query values. Invalid values fall back to
// the defaults and the limit is capped at MaxLimit.
func Parse(q url.Values, opts ...Option) Params {
	params := Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}
	for _, opt := range opts {
		opt(&params)
	}

	if val, err := strconv.ParseInt(q.Get("page"), 10, 32); err == nil && val > 0 {
		params.Page = int32(val)
	}
	if val, err := strconv.ParseInt(q.Get("limit"), 10, 32); err == nil && val > 0 {
		params.Limit = int32(val)
	}
	params.Limit = min(params.Limit, MaxLimit)
	params.Offset = calculateOffset(params.Page, params.Limit)

	if sort := q.Get("sort"); isValidSort(sort) {
		params.Sort = sort
	}
	return params
}

// Describe builds the page metadata for a result set of total items.
func (p Params) Describe(total int32) Meta {
	pages := int32(0)
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    HasNext(p.Offset, p.Limit, total),
	}
}

// HasNext reports whether items remain after the current page.
func HasNext(offset, limit, count int32) bool {
	return (offset + limit) < count
}
