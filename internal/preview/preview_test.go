package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
)

const sampleHTML = `<html><head><title>The Project Gutenberg eBook of Emma</title></head>
<body>
<section id="pg-header"><p>This ebook is for the use of anyone anywhere in the United States and most other parts of the world.</p></section>
<h1>Emma</h1>
<p>CHAPTER I</p>
<p>Emma Woodhouse, handsome, clever, and rich, with a comfortable home
   and happy disposition, seemed to unite some of the best blessings of existence.</p>
<p>She was the youngest of the two daughters of a most affectionate, indulgent father.</p>
<p>Her mother had died too long ago for her to have more than an indistinct remembrance of her caresses.</p>
</body></html>`

func TestParseHTML(t *testing.T) {
	excerpt, err := ParseHTML(strings.NewReader(sampleHTML), 2)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if excerpt.Title != "Emma" {
		t.Fatalf("unexpected title: %q", excerpt.Title)
	}
	if len(excerpt.Paragraphs) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %q", len(excerpt.Paragraphs), excerpt.Paragraphs)
	}
	if !strings.HasPrefix(excerpt.Paragraphs[0], "Emma Woodhouse, handsome, clever, and rich, with a comfortable home and happy") {
		t.Fatalf("whitespace not collapsed or header not skipped: %q", excerpt.Paragraphs[0])
	}
}

func TestParseText(t *testing.T) {
	text := "Licence text\n*** START OF THE PROJECT GUTENBERG EBOOK ***\n\nPRIDE AND PREJUDICE\n\n" +
		"It is a truth universally acknowledged, that a single man in\npossession of a good fortune, must be in want of a wife.\n\n" +
		"Short.\n\n" +
		"However little known the feelings or views of such a man may be on his first entering a neighbourhood.\n"

	excerpt, err := ParseText(strings.NewReader(text), 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if excerpt.Title != "PRIDE AND PREJUDICE" {
		t.Fatalf("unexpected title: %q", excerpt.Title)
	}
	if len(excerpt.Paragraphs) != 2 {
		t.Fatalf("expected 2 paragraphs, got %q", excerpt.Paragraphs)
	}
	if !strings.Contains(excerpt.Paragraphs[0], "single man in possession") {
		t.Fatalf("lines not joined: %q", excerpt.Paragraphs[0])
	}
}

func TestSourceLink(t *testing.T) {
	book := catalog.Book{Formats: map[string]string{
		"application/pdf":  "https://g.org/1.pdf",
		"text/plain":       "https://g.org/1.txt",
		"text/html":        "https://g.org/1.html.zip",
		"application/epub": "https://g.org/1.epub",
	}}
	link, err := SourceLink(book)
	if err != nil || link.URL != "https://g.org/1.txt" {
		t.Fatalf("expected plain text link, got %+v %v", link, err)
	}

	if _, err := SourceLink(catalog.Book{Formats: map[string]string{"application/pdf": "https://g.org/1.pdf"}}); !errors.Is(err, ErrNoReadableVersion) {
		t.Fatalf("expected ErrNoReadableVersion, got %v", err)
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emma.html" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleHTML))
	}))
	defer server.Close()

	fetcher := New(server.Client(), 1)
	book := catalog.Book{Title: "Emma", Links: []catalog.Link{{MediaType: "text/html", URL: server.URL + "/emma.html"}}}

	excerpt, err := fetcher.Fetch(context.Background(), book)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if excerpt.Source != server.URL+"/emma.html" || len(excerpt.Paragraphs) != 1 {
		t.Fatalf("unexpected excerpt: %+v", excerpt)
	}

	book.Links[0].URL = server.URL + "/missing.html"
	if _, err := fetcher.Fetch(context.Background(), book); err == nil {
		t.Fatalf("expected error for missing page")
	}
}
