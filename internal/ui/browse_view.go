package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ssh-vom/gutenberg-browse/internal/browse"
	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/cover"
)

// sentinelRows is how close to the end of the list the cursor has to be
// before the next page is requested.
const sentinelRows = 3

func newSearchInput() textinput.Model {
	input := textinput.New()
	input.Placeholder = "Search title or author"
	input.Focus()
	input.Prompt = "> "
	input.CharLimit = 120
	return input
}

func newBooksList(width, height int) list.Model {
	booksList := list.New([]list.Item{}, list.NewDefaultDelegate(), width, height)
	booksList.SetShowTitle(false)
	booksList.SetShowStatusBar(false)
	booksList.SetFilteringEnabled(false)
	booksList.SetShowHelp(false)
	return booksList
}

func (model *model) startBrowse(category string) tea.Cmd {
	if model.deps.Provider == nil {
		model.errorMessage = "Book listing unavailable: check the API settings"
		return nil
	}

	model.closeBrowse()
	model.coordinator = browse.New(model.deps.Provider, browse.Options{
		PageSize: model.config.PageSize,
		Debounce: model.config.Debounce(),
		Logger:   model.logger(),
	})
	model.snapshot = browse.Snapshot{}
	model.searchInput = newSearchInput()
	model.resultsList = newBooksList(resultsListWidth(model.width), browseListHeight(model.height))
	model.coverLoadingURL = ""
	model.errorMessage = ""
	model.infoMessage = ""
	model.state = stateBrowse

	model.coordinator.SetCategory(category)
	return tea.Batch(listenSnapshotCmd(model.coordinator), model.spinner.Tick, textinput.Blink)
}

// closeBrowse tears down the listing session. Responses still in flight are
// dropped by the coordinator.
func (model *model) closeBrowse() {
	if model.coordinator == nil {
		return
	}
	model.coordinator.Close()
	model.coordinator = nil
}

func (model *model) updateBrowse(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(msg)
		return cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			model.closeBrowse()
			return tea.Quit
		case "esc":
			model.closeBrowse()
			model.state = stateMenu
			return nil
		case "ctrl+u":
			model.searchInput.SetValue("")
			model.coordinator.SetSearchText("")
			return nil
		case "enter":
			if book, ok := model.selectedBook(); ok {
				return openBookCmd(model.deps.Opener, book)
			}
			return nil
		case "ctrl+p":
			return model.startPreview()
		case "up", "down", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			model.resultsList, cmd = model.resultsList.Update(msg)
			model.errorMessage = ""
			model.infoMessage = ""
			model.maybeLoadMore()
			return tea.Batch(cmd, model.requestCoverCmd())
		}

		var cmd tea.Cmd
		model.searchInput, cmd = model.searchInput.Update(msg)
		model.coordinator.SetSearchText(model.searchInput.Value())
		return cmd
	}

	var cmd tea.Cmd
	model.searchInput, cmd = model.searchInput.Update(msg)
	return cmd
}

func (model *model) startPreview() tea.Cmd {
	book, ok := model.selectedBook()
	if !ok {
		return nil
	}
	if model.deps.Previews == nil {
		model.errorMessage = "Preview unavailable"
		return nil
	}
	model.previewBook = book
	model.state = statePreviewLoading
	return tea.Batch(fetchPreviewCmd(model.deps.Previews, book), model.spinner.Tick)
}

func (model *model) applySnapshot(snapshot browse.Snapshot) {
	reset := snapshot.Generation != model.snapshot.Generation
	model.snapshot = snapshot

	items := make([]list.Item, 0, len(snapshot.Books))
	for _, book := range snapshot.Books {
		items = append(items, bookItem{book: book})
	}
	model.resultsList.SetItems(items)
	if reset {
		model.resultsList.ResetSelected()
	}

	model.maybeLoadMore()
}

// maybeLoadMore asks for the next page whenever the end of the list is on
// screen. It is re-evaluated after every cursor move and every snapshot.
func (model *model) maybeLoadMore() {
	if model.coordinator == nil {
		return
	}
	snapshot := model.snapshot
	if snapshot.Loading || !snapshot.HasMore || !snapshot.TotalKnown {
		return
	}
	if sentinelVisible(model.resultsList.Index(), len(model.resultsList.Items()), model.resultsList.Paginator.PerPage) {
		model.coordinator.LoadMore()
	}
}

func sentinelVisible(index, count, perPage int) bool {
	if count == 0 {
		return false
	}
	if perPage <= 0 || count <= perPage {
		return true
	}
	if index >= count-sentinelRows {
		return true
	}
	return index/perPage == (count-1)/perPage
}

func (model model) selectedBook() (catalog.Book, bool) {
	item, ok := model.resultsList.SelectedItem().(bookItem)
	if !ok {
		return catalog.Book{}, false
	}
	return item.book, true
}

func headerLine(snapshot browse.Snapshot) string {
	if !snapshot.TotalKnown {
		return ""
	}
	header := fmt.Sprintf("%d book(s)", snapshot.Total)
	if snapshot.LoadedCount < snapshot.Total {
		header += fmt.Sprintf(" · Loaded %d", snapshot.LoadedCount)
	}
	return header
}

func statusLine(snapshot browse.Snapshot, spinnerView string) string {
	switch {
	case snapshot.Loading:
		return spinnerView + " Loading..."
	case snapshot.ErrMessage != "":
		return warningStyle.Render(snapshot.ErrMessage)
	case snapshot.TotalKnown && len(snapshot.Books) == 0:
		return secondaryStyle.Render("No books found")
	}
	return ""
}

func (model model) browseView() string {
	listSection := []string{
		titleStyle.Render(genreLabel(model.snapshot.Category)),
		model.searchInput.View(),
	}
	if header := headerLine(model.snapshot); header != "" {
		listSection = append(listSection, secondaryStyle.Render(header))
	}
	if len(model.snapshot.Books) > 0 {
		listSection = append(listSection, model.resultsList.View())
	}
	if status := statusLine(model.snapshot, model.spinner.View()); status != "" {
		listSection = append(listSection, status)
	}
	if model.errorMessage != "" {
		listSection = append(listSection, warningStyle.Render(model.errorMessage))
	}
	if model.infoMessage != "" {
		listSection = append(listSection, secondaryStyle.Render(model.infoMessage))
	}
	listSection = append(listSection, secondaryStyle.Render("enter open · ctrl+p preview · ctrl+u clear · esc genres"))

	listView := lipgloss.NewStyle().Width(resultsListWidth(model.width)).Render(lipgloss.JoinVertical(lipgloss.Left, listSection...))

	selected, _ := model.selectedBook()
	panel := model.coverPanel(selected, coverPanelWidth(model.width))

	if model.width < 80 {
		return lipgloss.JoinVertical(lipgloss.Left, listView, panel)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, listView, panel)
}

func (model model) coverPanel(book catalog.Book, width int) string {
	if width < 20 {
		width = 20
	}

	lines := []string{}
	render := func() string {
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	if book.Title == "" && book.ID == "" {
		lines = append(lines, secondaryStyle.Render("Select a book to see its details."))
		return render()
	}

	lines = append(lines, panelTitleStyle.Render(bookItem{book: book}.Title()))
	lines = append(lines, bookItem{book: book}.Description())
	if len(book.Subjects) > 0 {
		lines = append(lines, secondaryStyle.Render(strings.Join(book.Subjects[:min(len(book.Subjects), 3)], "; ")))
	}
	if book.DownloadCount > 0 {
		lines = append(lines, secondaryStyle.Render(fmt.Sprintf("%d downloads", book.DownloadCount)))
	}
	lines = append(lines, "")

	if !model.supportsGraphics {
		return render()
	}

	coverURL := book.CoverURL()
	if coverURL == "" {
		lines = append(lines, secondaryStyle.Render("No cover art available."))
		return render()
	}

	image, ok := model.coverImages[coverURL]
	if !ok {
		if model.coverLoadingURL == coverURL {
			cols, rows := coverRenderSize(width, 0, 0)
			lines = append(lines, secondaryStyle.Render("Loading cover..."))
			lines = append(lines, coverPlaceholder(rows, cols))
		} else if errText, ok := model.coverErrors[coverURL]; ok {
			lines = append(lines, warningStyle.Render(errText))
		}
		return render()
	}

	cols, rows := coverRenderSize(width, image.Width, image.Height)
	escape, err := cover.RenderKitty(image.FilePath, cols, rows)
	if err != nil {
		lines = append(lines, warningStyle.Render(err.Error()))
		return render()
	}
	lines = append(lines, escape+"\n"+coverPlaceholder(rows, cols))
	return render()
}

func (model *model) requestCoverCmd() tea.Cmd {
	if !model.supportsGraphics || model.deps.Provider == nil {
		return nil
	}

	book, ok := model.selectedBook()
	if !ok {
		return nil
	}
	coverURL := book.CoverURL()
	if coverURL == "" {
		return nil
	}
	if _, ok := model.coverImages[coverURL]; ok {
		return nil
	}
	if model.coverLoadingURL == coverURL {
		return nil
	}
	if _, ok := model.coverErrors[coverURL]; ok {
		return nil
	}

	model.coverLoadingURL = coverURL
	return fetchCoverCmd(model.deps.Covers, model.deps.Provider, coverURL)
}

const coverCellAspectRatio = 0.5

func coverRenderSize(panelWidth int, imageWidth, imageHeight int) (int, int) {
	cols := panelWidth - 2
	if cols < 12 {
		cols = 12
	}

	rows := 12
	if imageWidth > 0 && imageHeight > 0 {
		ratio := float64(imageHeight) / float64(imageWidth)
		rows = int(math.Round(float64(cols) * ratio * coverCellAspectRatio))
	}

	if rows < 6 {
		rows = 6
	}
	if rows > 24 {
		rows = 24
	}

	return cols, rows
}

func coverPlaceholder(rows, cols int) string {
	if rows <= 0 || cols <= 0 {
		return ""
	}

	line := strings.Repeat(" ", cols)
	lines := make([]string, rows)
	for i := 0; i < rows; i++ {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func coverPanelWidth(totalWidth int) int {
	if totalWidth <= 40 {
		return totalWidth
	}

	panelWidth := totalWidth / 3
	if panelWidth < 28 {
		panelWidth = 28
	}
	if panelWidth > totalWidth-20 {
		panelWidth = totalWidth - 20
	}
	return panelWidth
}

func resultsListWidth(totalWidth int) int {
	if totalWidth < 80 {
		if totalWidth-4 < 20 {
			return 20
		}
		return totalWidth - 4
	}
	listWidth := totalWidth - coverPanelWidth(totalWidth) - 2
	if listWidth < 20 {
		listWidth = 20
	}
	return listWidth
}

// browseListHeight leaves room for the search box, header and status rows.
func browseListHeight(height int) int {
	return max(listHeight(height)-3, 4)
}
