// Package pagination computes page windows over a result total.
package pagination

import "math"

// DefaultPageSize is used when a pager is created with a non-positive size.
const DefaultPageSize = 10

// Pager tracks the current page of a result list. Pages are 1-based.
type Pager struct {
	pageSize int
	current  int
	total    int
}

// New creates a pager on page 1.
func New(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{pageSize: pageSize, current: 1}
}

// PageSize returns the number of results per page.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// Current returns the current page number.
func (p *Pager) Current() int {
	return p.current
}

// SetCurrent moves to page n. Values below 1 select page 1. Pages past
// the end are allowed and yield no results.
func (p *Pager) SetCurrent(n int) {
	if n < 1 {
		n = 1
	}
	p.current = n
}

// Total returns the number of results across all pages.
func (p *Pager) Total() int {
	return p.total
}

// SetTotal records the total number of results.
func (p *Pager) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	p.total = total
}

// Offset is the index of the first result on the current page. It
// saturates at math.MaxInt, which is past the end of any result list.
func (p *Pager) Offset() int {
	if p.current-1 > math.MaxInt/p.pageSize {
		return math.MaxInt
	}
	return (p.current - 1) * p.pageSize
}

// Limit is the maximum number of results on a page.
func (p *Pager) Limit() int {
	return p.pageSize
}

// PageCount returns the number of non-empty pages.
func (p *Pager) PageCount() int {
	if p.total == 0 {
		return 0
	}
	return (p.total + p.pageSize - 1) / p.pageSize
}

// HasNext reports whether a page follows the current one.
func (p *Pager) HasNext() bool {
	return p.current < p.PageCount()
}

// HasPrevious reports whether the current page is past the first.
func (p *Pager) HasPrevious() bool {
	return p.current > 1
}

// ItemsOnPage returns how many results the current page holds.
func (p *Pager) ItemsOnPage() int {
	remaining := p.total - p.Offset()
	switch {
	case remaining <= 0:
		return 0
	case remaining < p.pageSize:
		return remaining
	default:
		return p.pageSize
	}
}
