package pagination

import (
	"context"
	"fmt"
)

// Page is one batch of item identifiers returned by a single fetch.
type Page struct {
	// Number is the 1-based page index.
	Number int

	// Items are the matching identifiers on this page, in remote order.
	// A page can hold zero matches without being exhausted.
	Items []string

	// Exhausted reports that the remote page was empty: there is nothing
	// on this page or any later one.
	Exhausted bool
}

// PageSource is the interface a remote collection must implement to be walked
// by a Producer.
type PageSource interface {
	// FetchPage returns the page at the given 1-based index.
	FetchPage(ctx context.Context, page int) (Page, error)
}

// SourceFunc adapts a function to the PageSource interface.
type SourceFunc func(ctx context.Context, page int) (Page, error)

// FetchPage calls f(ctx, page).
func (f SourceFunc) FetchPage(ctx context.Context, page int) (Page, error) {
	return f(ctx, page)
}

// SliceSource serves pages from memory. Page n is SliceSource[n-1]; an empty
// slice, or any index past the end, is an exhausted page.
type SliceSource [][]string

// FetchPage implements PageSource.
func (s SliceSource) FetchPage(ctx context.Context, page int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if page < 1 {
		return Page{}, fmt.Errorf("invalid page index %d", page)
	}
	if page > len(s) || len(s[page-1]) == 0 {
		return Page{Number: page, Exhausted: true}, nil
	}

	items := make([]string, len(s[page-1]))
	copy(items, s[page-1])
	return Page{Number: page, Items: items}, nil
}

// SourceError reports a failed page fetch. It is always fatal to the producer.
type SourceError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SourceError) Unwrap() error {
	return e.Err
}
