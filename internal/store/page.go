package store

// Page selects a window of a listing. Number starts at 1.
type Page struct {
	Number int // Current page
	Size   int // Page size
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps the page into the accepted range
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 || p.Size > maxPageSize {
		p.Size = defaultPageSize
	}
	return p
}

// Offset is the number of rows skipped before this page
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// TotalPages computes how many pages hold total rows
func (p Page) TotalPages(total int64) int {
	p = p.Normalize()
	return (int(total) + p.Size - 1) / p.Size
}
