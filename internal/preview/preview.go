package preview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
)

const (
	DefaultParagraphs = 6
	minParagraphRunes = 40
	maxBodyBytes      = 4 << 20
)

var ErrNoReadableVersion = errors.New("no readable version available")

// Excerpt is the opening of a book rendered as plain paragraphs.
type Excerpt struct {
	Title      string
	Paragraphs []string
	Source     string
}

type Fetcher struct {
	httpClient *http.Client
	paragraphs int
}

func New(httpClient *http.Client, paragraphs int) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if paragraphs <= 0 {
		paragraphs = DefaultParagraphs
	}
	return &Fetcher{httpClient: httpClient, paragraphs: paragraphs}
}

// SourceLink picks the edition a preview can be read from: HTML first, then
// plain text. Archives are skipped.
func SourceLink(book catalog.Book) (catalog.Link, error) {
	candidates := book.CandidateLinks()
	for _, wanted := range []string{"text/html", "text/plain"} {
		for _, link := range candidates {
			mediaType := strings.ToLower(link.MediaType)
			if strings.Contains(mediaType, "zip") || strings.HasSuffix(strings.ToLower(link.URL), ".zip") {
				continue
			}
			if strings.Contains(mediaType, wanted) {
				return link, nil
			}
		}
	}
	return catalog.Link{}, ErrNoReadableVersion
}

func (fetcher *Fetcher) Fetch(ctx context.Context, book catalog.Book) (Excerpt, error) {
	link, err := SourceLink(book)
	if err != nil {
		return Excerpt{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return Excerpt{}, fmt.Errorf("error building preview request: %w", err)
	}

	response, err := fetcher.httpClient.Do(request)
	if err != nil {
		return Excerpt{}, fmt.Errorf("error making preview request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Excerpt{}, fmt.Errorf("preview request failed: %s", response.Status)
	}

	body := io.LimitReader(response.Body, maxBodyBytes)
	var excerpt Excerpt
	if strings.Contains(strings.ToLower(link.MediaType), "text/html") {
		excerpt, err = ParseHTML(body, fetcher.paragraphs)
	} else {
		excerpt, err = ParseText(body, fetcher.paragraphs)
	}
	if err != nil {
		return Excerpt{}, err
	}

	if excerpt.Title == "" {
		excerpt.Title = book.Title
	}
	excerpt.Source = link.URL
	return excerpt, nil
}

// ParseHTML extracts the document title and the first paragraphs long enough
// to be prose. Boilerplate blocks of the hosting site are ignored.
func ParseHTML(reader io.Reader, limit int) (Excerpt, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return Excerpt{}, fmt.Errorf("unable to parse preview: %w", err)
	}

	doc.Find("script, style, #pg-header, #pg-footer, .pg-boilerplate, nav").Remove()

	excerpt := Excerpt{Title: collapse(doc.Find("title").First().Text())}
	if heading := collapse(doc.Find("h1").First().Text()); heading != "" {
		excerpt.Title = heading
	}

	doc.Find("p").EachWithBreak(func(i int, selection *goquery.Selection) bool {
		text := collapse(selection.Text())
		if len([]rune(text)) >= minParagraphRunes {
			excerpt.Paragraphs = append(excerpt.Paragraphs, text)
		}
		return len(excerpt.Paragraphs) < limit
	})

	return excerpt, nil
}

// ParseText splits a plain-text edition on blank lines and skips the
// licence header that precedes the first "*** START" marker when present.
func ParseText(reader io.Reader, limit int) (Excerpt, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		excerpt Excerpt
		current []string
		lines   []string
	)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Excerpt{}, fmt.Errorf("unable to read preview: %w", err)
	}

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "*** START") {
			lines = lines[i+1:]
			break
		}
	}

	flush := func() {
		text := collapse(strings.Join(current, " "))
		current = current[:0]
		if text == "" {
			return
		}
		if excerpt.Title == "" {
			excerpt.Title = text
			return
		}
		if len([]rune(text)) >= minParagraphRunes {
			excerpt.Paragraphs = append(excerpt.Paragraphs, text)
		}
	}

	for _, line := range lines {
		if len(excerpt.Paragraphs) >= limit {
			break
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if len(excerpt.Paragraphs) < limit {
		flush()
	}

	return excerpt, nil
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
