package books

import (
	"context"
	"errors"
	"testing"
)

func TestRequestQueryOmitsEmptyValues(t *testing.T) {
	request := Request{Topic: "  FICTION ", Title: "  ", Author: "twain", MimeTypes: CoverMimeTypes, Page: 2}

	got := request.Query().Encode()
	want := "author=twain&mime_type=image%2Fjpeg%2Cimage%2Fpng%2Cimage%2Fjpg&page=2&topic=FICTION"
	if got != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", got, want)
	}
}

func TestRequestQueryWithoutPage(t *testing.T) {
	query := Request{Topic: "DRAMA"}.Query()
	if query.Has("page") || query.Has("mime_type") || query.Get("topic") != "DRAMA" {
		t.Fatalf("unexpected query: %v", query)
	}
}

func TestFetchErrorMatchesSentinel(t *testing.T) {
	err := error(&FetchError{URL: "http://x", Err: context.DeadlineExceeded})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the transport cause to be preserved")
	}

	var fetchErr *FetchError
	if !errors.As(error(&FetchError{StatusCode: 502}), &fetchErr) || fetchErr.StatusCode != 502 {
		t.Fatalf("expected errors.As to expose the status")
	}
}
