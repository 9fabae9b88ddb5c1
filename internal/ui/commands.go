package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ssh-vom/gutenberg-browse/internal/app"
	"github.com/ssh-vom/gutenberg-browse/internal/browse"
	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/cover"
	"github.com/ssh-vom/gutenberg-browse/internal/preview"
)

// listenSnapshotCmd waits for the next snapshot of coordinator. The message
// carries its source so updates from a closed session can be ignored.
func listenSnapshotCmd(coordinator *browse.Coordinator) tea.Cmd {
	if coordinator == nil {
		return nil
	}
	updates := coordinator.Updates()
	return func() tea.Msg {
		snapshot, ok := <-updates
		return snapshotMsg{source: coordinator, snapshot: snapshot, closed: !ok}
	}
}

func fetchCoverCmd(cache cover.Cache, fetcher cover.Fetcher, coverURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		image, err := cache.Load(ctx, fetcher, coverURL)
		return coverLoadedMsg{url: coverURL, image: image, err: err}
	}
}

func fetchPreviewCmd(fetcher *preview.Fetcher, book catalog.Book) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		excerpt, err := fetcher.Fetch(ctx, book)
		return previewMsg{excerpt: excerpt, err: err}
	}
}

func openBookCmd(opener app.Opener, book catalog.Book) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		link, err := app.OpenBook(ctx, book, opener)
		return openedMsg{link: link, err: err}
	}
}

func listenLogCmd(lines <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-lines)
	}
}
