package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Categories are the genres offered on the home screen.
var Categories = []string{
	"FICTION",
	"DRAMA",
	"HUMOUR",
	"POLITICS",
	"PHILOSOPHY",
	"HISTORY",
	"ADVENTURE",
	"CHILDREN",
	"POETRY",
	"ROMANCE",
}

type Author struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year,omitempty"`
	DeathYear *int   `json:"death_year,omitempty"`
}

type Link struct {
	MediaType string `json:"type"`
	URL       string `json:"url"`
}

// Book is a listing record as returned by the remote API. Records are
// canonicalized when decoded and are not modified afterwards.
type Book struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Authors       []Author          `json:"authors"`
	Subjects      []string          `json:"subjects,omitempty"`
	Bookshelves   []string          `json:"bookshelves,omitempty"`
	Languages     []string          `json:"languages,omitempty"`
	Formats       map[string]string `json:"formats,omitempty"`
	Links         []Link            `json:"links,omitempty"`
	DownloadCount int               `json:"download_count,omitempty"`
}

// DecodeBook decodes a single listing record. Records that are not JSON
// objects report ok=false. Every field is read on its own so a value of an
// unexpected type only blanks that field.
func DecodeBook(data []byte) (Book, bool) {
	fields, ok := objectFields(data)
	if !ok {
		return Book{}, false
	}

	id := scalarString(fields["gutenberg_id"])
	if id == "" {
		id = scalarString(fields["id"])
	}

	book := Book{
		ID:          id,
		Title:       scalarString(fields["title"]),
		Authors:     decodeAuthors(fields["authors"]),
		Subjects:    stringList(fields["subjects"]),
		Bookshelves: stringList(fields["bookshelves"]),
		Languages:   stringList(fields["languages"]),
		Formats:     decodeFormats(fields["formats"]),
		Links:       decodeLinks(fields["links"]),
	}
	if count, ok := intValue(fields["download_count"]); ok && count > 0 {
		book.DownloadCount = count
	}

	return book, true
}

func decodeAuthors(raw json.RawMessage) []Author {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	authors := make([]Author, 0, len(items))
	for _, item := range items {
		fields, ok := objectFields(item)
		if !ok {
			if name := scalarString(item); name != "" {
				authors = append(authors, Author{Name: name})
			}
			continue
		}
		author := Author{Name: scalarString(fields["name"])}
		if year, ok := intValue(fields["birth_year"]); ok {
			author.BirthYear = &year
		}
		if year, ok := intValue(fields["death_year"]); ok {
			author.DeathYear = &year
		}
		authors = append(authors, author)
	}
	return authors
}

func decodeFormats(raw json.RawMessage) map[string]string {
	fields, ok := objectFields(raw)
	if !ok || len(fields) == 0 {
		return nil
	}

	formats := make(map[string]string, len(fields))
	for mediaType, value := range fields {
		var link string
		if err := json.Unmarshal(value, &link); err != nil || strings.TrimSpace(link) == "" {
			continue
		}
		formats[mediaType] = SecureURL(link)
	}
	return formats
}

func decodeLinks(raw json.RawMessage) []Link {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var links []Link
	for _, item := range items {
		fields, ok := objectFields(item)
		if !ok {
			continue
		}
		links = append(links, Link{
			MediaType: firstNonEmpty(scalarString(fields["type"]), scalarString(fields["mime_type"]), scalarString(fields["media_type"])),
			URL:       SecureURL(firstNonEmpty(scalarString(fields["url"]), scalarString(fields["href"]))),
		})
	}
	return links
}

// stringList accepts an array of strings or a lone string. Non-string
// elements are skipped.
func stringList(raw json.RawMessage) []string {
	if value := scalarString(raw); value != "" {
		return []string{value}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var values []string
	for _, item := range items {
		if value := scalarString(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}

// intValue reads a JSON number or a numeric string.
func intValue(raw json.RawMessage) (int, bool) {
	value := scalarString(raw)
	if value == "" {
		return 0, false
	}
	number, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return int(number), true
}

// AuthorNames joins the author names for display.
func (book Book) AuthorNames() string {
	names := make([]string, 0, len(book.Authors))
	for _, author := range book.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func scalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err == nil {
		return number.String()
	}

	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
