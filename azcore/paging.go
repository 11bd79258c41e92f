package azcore

import (
	"context"
	"errors"
)

// PagingHandler tells a Pager how to fetch pages and when to stop.
type PagingHandler[T any] struct {
	// More reports whether the page points at further pages.
	More func(page T) bool

	// Fetcher gets the next page. current is nil for the first call.
	Fetcher func(ctx context.Context, current *T) (T, error)
}

// Pager iterates the pages of a list operation. The usual loop is
//
//	for pager.More() {
//	    page, err := pager.NextPage(ctx)
//	    ...
//	}
type Pager[T any] struct {
	handler PagingHandler[T]
	current *T
}

// NewPager creates a Pager from a PagingHandler.
func NewPager[T any](handler PagingHandler[T]) *Pager[T] {
	return &Pager[T]{handler: handler}
}

// More reports whether there are further pages to fetch.
func (p *Pager[T]) More() bool {
	if p.current == nil {
		return true
	}
	return p.handler.More(*p.current)
}

// NextPage fetches the next page.
func (p *Pager[T]) NextPage(ctx context.Context) (T, error) {
	var page T
	if p.current != nil && !p.handler.More(*p.current) {
		return page, errors.New("azcore: no more pages")
	}
	page, err := p.handler.Fetcher(ctx, p.current)
	if err != nil {
		return page, err
	}
	p.current = &page
	return page, nil
}
