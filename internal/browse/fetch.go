package browse

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books"
)

const DefaultPageSize = 25

// Filters is the user-controlled part of a listing query.
type Filters struct {
	Category   string
	SearchTerm string
}

func (filters Filters) dual() bool {
	return strings.TrimSpace(filters.SearchTerm) != ""
}

// BuildRequest describes one listing call for the given page.
func BuildRequest(category, titleQuery, authorQuery string, page int) books.Request {
	return books.Request{
		Topic:     strings.TrimSpace(category),
		Title:     strings.TrimSpace(titleQuery),
		Author:    strings.TrimSpace(authorQuery),
		MimeTypes: books.CoverMimeTypes,
		Page:      page,
	}
}

// Requests returns the calls needed for one page: a single unfiltered call,
// or a title call and an author call when a search term is set since the
// API has no combined title-or-author filter.
func Requests(filters Filters, page int) []books.Request {
	if !filters.dual() {
		return []books.Request{BuildRequest(filters.Category, "", "", page)}
	}
	term := strings.TrimSpace(filters.SearchTerm)
	return []books.Request{
		BuildRequest(filters.Category, term, "", page),
		BuildRequest(filters.Category, "", term, page),
	}
}

// FetchPages issues every request concurrently and returns only once all of
// them finished. Any failing branch fails the whole page.
func FetchPages(ctx context.Context, provider books.Provider, requests []books.Request) ([]catalog.Page, error) {
	pages := make([]catalog.Page, len(requests))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, request := range requests {
		group.Go(func() error {
			page, err := provider.FetchPage(groupCtx, request)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// Listing is the outcome of a one-shot page fetch.
type Listing struct {
	Books   []catalog.Book
	Total   int
	Page    int
	HasMore bool
}

// Fetch loads a single page for the filters without any accumulated state.
func Fetch(ctx context.Context, provider books.Provider, filters Filters, page, pageSize int) (Listing, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pages, err := FetchPages(ctx, provider, Requests(filters, page))
	if err != nil {
		return Listing{}, err
	}

	set := catalog.NewResultSet()
	outcome := set.Merge(pages, true)

	listing := Listing{Books: set.Books(), Total: set.Total(), Page: page}
	if !outcome.Exhausted {
		listing.HasMore = catalog.HasMore(totals(pages), page, pageSize)
	}
	return listing, nil
}

func totals(pages []catalog.Page) []int {
	result := make([]int, len(pages))
	for i, page := range pages {
		result[i] = page.Total
	}
	return result
}
