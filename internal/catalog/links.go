package catalog

import (
	"errors"
	"sort"
	"strings"
)

var ErrNoViewableVersion = errors.New("no viewable version available")

// SecureURL upgrades a link to https. Already secure and relative links are
// returned unchanged apart from surrounding whitespace.
func SecureURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "https://"):
		return trimmed
	case strings.HasPrefix(lower, "http://"):
		return "https://" + trimmed[len("http://"):]
	case strings.HasPrefix(trimmed, "//"):
		return "https:" + trimmed
	default:
		return trimmed
	}
}

// CandidateLinks lists the links of a book in resolution order: the links
// array as given, or the formats map sorted by media type when the record
// has no links array.
func (book Book) CandidateLinks() []Link {
	candidates := make([]Link, 0, len(book.Links)+len(book.Formats))
	if len(book.Links) > 0 {
		for _, link := range book.Links {
			if link.URL == "" {
				continue
			}
			candidates = append(candidates, Link{MediaType: link.MediaType, URL: SecureURL(link.URL)})
		}
		return candidates
	}

	mediaTypes := make([]string, 0, len(book.Formats))
	for mediaType := range book.Formats {
		mediaTypes = append(mediaTypes, mediaType)
	}
	sort.Strings(mediaTypes)

	for _, mediaType := range mediaTypes {
		link := book.Formats[mediaType]
		if link == "" {
			continue
		}
		candidates = append(candidates, Link{MediaType: mediaType, URL: SecureURL(link)})
	}
	return candidates
}

// ViewableLink picks the best format that opens directly in a browser:
// HTML, then PDF, then plain text. Archives and images never qualify.
func (book Book) ViewableLink() (Link, error) {
	var viewable []Link
	for _, link := range book.CandidateLinks() {
		if isViewableCandidate(link) {
			viewable = append(viewable, link)
		}
	}

	for _, match := range []func(string) bool{isHTML, isPDF, isPlainText} {
		for _, link := range viewable {
			if match(strings.ToLower(link.MediaType)) {
				return link, nil
			}
		}
	}

	return Link{}, ErrNoViewableVersion
}

func (book Book) CoverURL() string {
	for _, link := range book.CandidateLinks() {
		if strings.HasPrefix(strings.ToLower(link.MediaType), "image/") {
			return link.URL
		}
	}
	return ""
}

func isViewableCandidate(link Link) bool {
	mediaType := strings.ToLower(link.MediaType)
	if strings.Contains(mediaType, "zip") || strings.HasPrefix(mediaType, "image/") {
		return false
	}
	return !strings.HasSuffix(strings.ToLower(link.URL), ".zip")
}

func isHTML(mediaType string) bool      { return strings.Contains(mediaType, "text/html") }
func isPDF(mediaType string) bool       { return strings.Contains(mediaType, "pdf") }
func isPlainText(mediaType string) bool { return strings.Contains(mediaType, "text/plain") }
