package store

import "math"

// Paging defaults applied when a request leaves them unset or out of range.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage is the largest page index whose offset fits in an int at any
	// accepted page size.
	MaxPage = math.MaxInt / MaxPageSize
)

// PageRequest selects a zero-based page of a listing ordered by id ascending.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request into the accepted range.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip. The request must be normalized.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one slice of a listing together with the size of the whole listing.
type Page[T any] struct {
	Items []T
	Total int64
	PageRequest
}

// TotalPages returns how many pages of the requested size the listing spans.
func (p *Page[T]) TotalPages() int {
	if p.Size <= 0 || p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}
