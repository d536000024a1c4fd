package domain

// Page size bounds for the admin registration listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams selects one page of a listing. Page is 1-based.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Normalized returns p with a page below 1 moved to 1 and the page size replaced by the
// default when below 1 or capped at MaxPageSize.
func (p PaginationParams) Normalized() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the number of rows before the page.
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Window returns the bounds of the page within a listing of total items, for slicing a
// listing that was filtered in memory. A page size of 0 takes everything after the offset.
func (p PaginationParams) Window(total int) (start, end int) {
	start = min(p.Offset(), total)
	if p.PageSize <= 0 {
		return start, total
	}
	return start, min(start+p.PageSize, total)
}

// TotalPages is the number of pages of p's size needed for total items.
func (p PaginationParams) TotalPages(total int) int {
	if p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}
