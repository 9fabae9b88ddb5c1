package catalog

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a logical book across fetch branches and overlapping pages.
type Key string

// KeyOf hashes the identity fields of a book: id, title, author names and
// the first entry of its links array. Title and names compare trimmed and
// case-insensitively.
func KeyOf(book Book) Key {
	authors := make([]string, len(book.Authors))
	for i, author := range book.Authors {
		authors[i] = strings.ToLower(strings.TrimSpace(author.Name))
	}

	firstLink := ""
	if len(book.Links) > 0 {
		firstLink = book.Links[0].URL
	}

	composite := strings.Join([]string{
		strings.TrimSpace(book.ID),
		strings.ToLower(strings.TrimSpace(book.Title)),
		strings.Join(authors, "|"),
		firstLink,
	}, "::")

	return Key(strconv.FormatUint(xxhash.Sum64String(composite), 16))
}

// ResultSet accumulates listing pages in first-seen order. It is not safe for
// concurrent use; the owner serializes access.
type ResultSet struct {
	keys  []Key
	books map[Key]Book
	total int
}

func NewResultSet() *ResultSet {
	return &ResultSet{books: map[Key]Book{}}
}

// MergeOutcome reports how a merge changed the set.
type MergeOutcome struct {
	Exhausted bool
	Added     int
}

// Merge folds the pages of one fetch into the set. With reset the previous
// contents are discarded first. When every page is empty the fetch counts as
// exhausted: a reset still clears the set and records the reported total,
// a pagination fetch leaves the set untouched.
func (set *ResultSet) Merge(pages []Page, reset bool) MergeOutcome {
	reported := 0
	anyBooks := false
	for _, page := range pages {
		if len(page.Books) > 0 {
			anyBooks = true
		}
		reported = max(reported, page.Total)
	}

	if !anyBooks {
		if reset {
			set.clear()
			set.total = reported
		}
		return MergeOutcome{Exhausted: true}
	}

	if reset {
		set.clear()
	}

	before := len(set.keys)
	for _, page := range pages {
		for _, book := range page.Books {
			set.upsert(book)
		}
	}

	set.total = max(set.total, reported)
	if set.total == 0 {
		set.total = len(set.keys)
	}

	return MergeOutcome{Added: len(set.keys) - before}
}

func (set *ResultSet) upsert(book Book) {
	key := KeyOf(book)
	if _, exists := set.books[key]; !exists {
		set.keys = append(set.keys, key)
	}
	set.books[key] = book
}

func (set *ResultSet) clear() {
	set.keys = nil
	set.books = map[Key]Book{}
	set.total = 0
}

// Reset empties the set and records a total, used when a fetch fails.
func (set *ResultSet) Reset(total int) {
	set.clear()
	set.total = total
}

func (set *ResultSet) Len() int { return len(set.keys) }

func (set *ResultSet) Total() int { return set.total }

// Books returns the accumulated books in insertion order as a fresh slice.
func (set *ResultSet) Books() []Book {
	books := make([]Book, 0, len(set.keys))
	for _, key := range set.keys {
		books = append(books, set.books[key])
	}
	return books
}

// HasMore reports whether any branch total exceeds what pages 1..page cover.
func HasMore(totals []int, page, pageSize int) bool {
	covered := page * pageSize
	for _, total := range totals {
		if total > covered {
			return true
		}
	}
	return false
}
