package catalog

import (
	"bytes"
	"encoding/json"
	"math"
)

// Page is one decoded listing response.
type Page struct {
	Books []Book
	Total int
}

// DecodePage accepts both listing shapes served by the API
// ({books, total_count} and {results, count}). Anything unrecognizable
// decodes to an empty page.
func DecodePage(payload []byte) Page {
	return Page{Books: ExtractBooks(payload), Total: ExtractTotalCount(payload)}
}

func ExtractBooks(payload []byte) []Book {
	fields, ok := objectFields(payload)
	if !ok {
		return []Book{}
	}

	for _, name := range []string{"books", "results"} {
		items, ok := arrayField(fields, name)
		if !ok {
			continue
		}
		books := make([]Book, 0, len(items))
		for _, item := range items {
			if book, ok := DecodeBook(item); ok {
				books = append(books, book)
			}
		}
		return books
	}

	return []Book{}
}

func ExtractTotalCount(payload []byte) int {
	fields, ok := objectFields(payload)
	if !ok {
		return 0
	}

	for _, name := range []string{"total_count", "count"} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		var parsed *float64
		if err := json.Unmarshal(value, &parsed); err != nil || parsed == nil {
			continue
		}
		number := *parsed
		if number <= 0 || math.IsNaN(number) {
			return 0
		}
		if number > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(number)
	}

	return 0
}

func objectFields(payload []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func arrayField(fields map[string]json.RawMessage, name string) ([]json.RawMessage, bool) {
	value, ok := fields[name]
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, false
	}
	return items, true
}
