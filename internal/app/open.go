package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pkg/browser"

	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
)

// Opener hands a URL to something that can display it.
type Opener interface {
	Open(ctx context.Context, url string) error
}

type OpenerFunc func(ctx context.Context, url string) error

func (fn OpenerFunc) Open(ctx context.Context, url string) error { return fn(ctx, url) }

// OpenBook resolves the best viewable edition of book and opens it. It
// returns catalog.ErrNoViewableVersion without calling opener when the book
// has nothing a browser can show.
func OpenBook(ctx context.Context, book catalog.Book, opener Opener) (catalog.Link, error) {
	link, err := book.ViewableLink()
	if err != nil {
		return catalog.Link{}, err
	}
	if opener == nil {
		return link, errors.New("no opener configured")
	}
	if err := opener.Open(ctx, link.URL); err != nil {
		return link, fmt.Errorf("unable to open %s: %w", link.URL, err)
	}
	return link, nil
}

// BrowserOpener launches the platform's default browser. Output of the
// launcher is discarded so it cannot draw over the terminal UI.
type BrowserOpener struct {
	openURL func(url string) error
}

func NewBrowserOpener() BrowserOpener {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return BrowserOpener{openURL: browser.OpenURL}
}

func (opener BrowserOpener) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opener.openURL == nil {
		return errors.New("browser opener not initialized")
	}
	return opener.openURL(url)
}
