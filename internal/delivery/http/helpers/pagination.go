package helpers

import (
	"net/http"
	"strconv"

	"therapyhub/internal/domain"
)

// DefaultPage is the page served when the query names none.
const DefaultPage = 1

// Re-exported so handlers and their docs share one set of bounds.
const (
	DefaultPageSize = domain.DefaultPageSize
	MaxPageSize     = domain.MaxPageSize
)

// ParsePagination reads page and page_size from the query string. Unparsable values count
// as missing; the result is normalized.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return domain.PaginationParams{Page: page, PageSize: size}.Normalized()
}

// PaginationMeta describes the page returned alongside a listing.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginationMeta reports page within a listing of total items.
func NewPaginationMeta(page domain.PaginationParams, total int) PaginationMeta {
	return PaginationMeta{
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: page.TotalPages(total),
	}
}
