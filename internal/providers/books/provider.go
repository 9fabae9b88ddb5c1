package books

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
)

// CoverMimeTypes restricts listings to records that carry a cover image.
var CoverMimeTypes = []string{"image/jpeg", "image/png", "image/jpg"}

type Provider interface {
	FetchPage(ctx context.Context, request Request) (catalog.Page, error)
	FetchCover(ctx context.Context, coverURL string) ([]byte, error)
}

// Request describes one listing call.
type Request struct {
	Topic     string
	Title     string
	Author    string
	MimeTypes []string
	Page      int
}

// Query renders the request parameters, omitting every value that is empty
// after trimming.
func (request Request) Query() url.Values {
	values := url.Values{}
	setTrimmed(values, "topic", request.Topic)
	setTrimmed(values, "title", request.Title)
	setTrimmed(values, "author", request.Author)

	mimeTypes := make([]string, 0, len(request.MimeTypes))
	for _, mimeType := range request.MimeTypes {
		if trimmed := strings.TrimSpace(mimeType); trimmed != "" {
			mimeTypes = append(mimeTypes, trimmed)
		}
	}
	setTrimmed(values, "mime_type", strings.Join(mimeTypes, ","))

	if request.Page > 0 {
		values.Set("page", strconv.Itoa(request.Page))
	}
	return values
}

func setTrimmed(values url.Values, key, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		values.Set(key, trimmed)
	}
}

var ErrFetchFailed = errors.New("fetch failed")

// FetchError reports a listing call that failed in transport or returned a
// non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ErrFetchFailed.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch failed: HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return ErrFetchFailed.Error()
}

func (e *FetchError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}
