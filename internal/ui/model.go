package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/ssh-vom/gutenberg-browse/internal/app"
	"github.com/ssh-vom/gutenberg-browse/internal/browse"
	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/config"
	"github.com/ssh-vom/gutenberg-browse/internal/cover"
	"github.com/ssh-vom/gutenberg-browse/internal/preview"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books"
)

type appState int

const (
	stateMenu appState = iota
	stateBrowse
	statePreviewLoading
	statePreview
	stateSettings
	stateAbout
)

type menuItem struct {
	title       string
	description string
	category    string
	action      appState
}

func (item menuItem) Title() string       { return item.title }
func (item menuItem) Description() string { return item.description }
func (item menuItem) FilterValue() string { return item.title }

type bookItem struct {
	book catalog.Book
}

func (item bookItem) Title() string {
	if strings.TrimSpace(item.book.Title) == "" {
		return "Untitled"
	}
	return item.book.Title
}

func (item bookItem) Description() string {
	if names := item.book.AuthorNames(); names != "" {
		return names
	}
	return "Unknown author"
}

func (item bookItem) FilterValue() string { return item.book.Title }

type snapshotMsg struct {
	source   *browse.Coordinator
	snapshot browse.Snapshot
	closed   bool
}

type coverLoadedMsg struct {
	url   string
	image cover.Image
	err   error
}

type previewMsg struct {
	excerpt preview.Excerpt
	err     error
}

type openedMsg struct {
	link catalog.Link
	err  error
}

type logMsg string

type model struct {
	state appState

	config    config.Config
	deps      Dependencies
	buildDeps BuildDependencies

	menu        list.Model
	searchInput textinput.Model
	resultsList list.Model
	pager       viewport.Model

	coordinator *browse.Coordinator
	snapshot    browse.Snapshot

	previewBook catalog.Book
	excerpt     preview.Excerpt

	coverImages      map[string]cover.Image
	coverErrors      map[string]string
	coverLoadingURL  string
	supportsGraphics bool

	spinner spinner.Model

	settings     settingsForm
	errorMessage string
	infoMessage  string

	width  int
	height int

	logLines <-chan string
	logTail  []string
	verbose  bool
}

type Dependencies struct {
	Provider books.Provider
	Covers   cover.Cache
	Previews *preview.Fetcher
	Opener   app.Opener
	Logger   *zap.Logger
}

type BuildDependencies func(cfg config.Config) (Dependencies, error)

// NewModel builds the root program model. When logLines is non-nil the last
// log entries are shown under every screen.
func NewModel(cfg config.Config, deps Dependencies, buildDeps BuildDependencies, startupErr error, logLines <-chan string) model {
	spinnerModel := spinner.New()
	spinnerModel.Spinner = spinner.Dot

	model := model{
		state:            stateMenu,
		config:           cfg,
		deps:             deps,
		buildDeps:        buildDeps,
		menu:             newMenuList(0, 0),
		searchInput:      newSearchInput(),
		resultsList:      newBooksList(0, 0),
		pager:            viewport.New(0, 0),
		coverImages:      map[string]cover.Image{},
		coverErrors:      map[string]string{},
		supportsGraphics: cover.SupportsKittyGraphics(os.Getenv("TERM")),
		spinner:          spinnerModel,
		logLines:         logLines,
		verbose:          logLines != nil,
	}

	if startupErr != nil {
		model.errorMessage = startupErr.Error()
	}

	return model
}

func (model model) Init() tea.Cmd {
	if model.verbose {
		return listenLogCmd(model.logLines)
	}
	return nil
}

func (model model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.width = msg.Width
		model.height = msg.Height
		model.menu.SetSize(msg.Width-4, listHeight(msg.Height))
		model.resultsList.SetSize(resultsListWidth(msg.Width), browseListHeight(msg.Height))
		model.pager.Width = max(msg.Width-4, 20)
		model.pager.Height = max(listHeight(msg.Height)-2, 5)
		if model.state == statePreview {
			model.pager.SetContent(renderExcerpt(model.excerpt, model.pager.Width))
		}
		if model.state == stateBrowse {
			model.maybeLoadMore()
			return model, model.requestCoverCmd()
		}
		return model, nil
	case snapshotMsg:
		if msg.closed || msg.source != model.coordinator {
			return model, nil
		}
		model.applySnapshot(msg.snapshot)
		return model, tea.Batch(listenSnapshotCmd(model.coordinator), model.requestCoverCmd())
	case coverLoadedMsg:
		if msg.err != nil {
			model.coverErrors[msg.url] = msg.err.Error()
			model.logger().Debug("cover unavailable", zap.String("url", msg.url), zap.Error(msg.err))
		} else if msg.image.FilePath != "" {
			model.coverImages[msg.url] = msg.image
		}
		if model.coverLoadingURL == msg.url {
			model.coverLoadingURL = ""
		}
		return model, model.requestCoverCmd()
	case previewMsg:
		if model.state != statePreviewLoading {
			return model, nil
		}
		if msg.err != nil {
			model.state = stateBrowse
			model.errorMessage = "Preview unavailable: " + msg.err.Error()
			return model, nil
		}
		model.excerpt = msg.excerpt
		model.pager.SetContent(renderExcerpt(msg.excerpt, model.pager.Width))
		model.pager.GotoTop()
		model.state = statePreview
		return model, nil
	case openedMsg:
		model.handleOpened(msg)
		return model, nil
	case logMsg:
		if model.verbose {
			model.logTail = append(model.logTail, string(msg))
			if len(model.logTail) > 6 {
				model.logTail = model.logTail[len(model.logTail)-6:]
			}
			return model, listenLogCmd(model.logLines)
		}
		return model, nil
	}

	return model.handleStateUpdate(msg)
}

func (model *model) handleStateUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch model.state {
	case stateMenu:
		return *model, model.updateMenu(msg)
	case stateBrowse:
		return *model, model.updateBrowse(msg)
	case statePreviewLoading:
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc":
				model.state = stateBrowse
				return *model, nil
			case "ctrl+c":
				model.closeBrowse()
				return *model, tea.Quit
			}
		}
		var spinnerCmd tea.Cmd
		model.spinner, spinnerCmd = model.spinner.Update(msg)
		return *model, spinnerCmd
	case statePreview:
		return *model, model.updatePreview(msg)
	case stateSettings:
		return *model, model.updateSettings(msg)
	case stateAbout:
		return *model, model.updateInfoScreens(msg)
	default:
		return *model, nil
	}
}

func (model model) View() string {
	view := ""

	switch model.state {
	case stateMenu:
		lines := []string{
			titleStyle.Render("Gutenberg Browser"),
			model.menu.View(),
		}
		if model.errorMessage != "" {
			lines = append(lines, warningStyle.Render(model.errorMessage))
		}
		if model.infoMessage != "" {
			lines = append(lines, secondaryStyle.Render(model.infoMessage))
		}
		lines = append(lines, secondaryStyle.Render("Enter to select · s settings · q quit"))
		view = lipgloss.JoinVertical(lipgloss.Left, lines...)
	case stateBrowse:
		view = model.browseView()
	case statePreviewLoading:
		view = fmt.Sprintf("%s Fetching preview of %s...", model.spinner.View(), bookItem{book: model.previewBook}.Title())
	case statePreview:
		view = model.previewView()
	case stateSettings:
		view = model.settingsView()
	case stateAbout:
		view = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("About"),
			"Browse, search and read public-domain books.",
			"",
			"Type to search titles and authors · ↑/↓ to move, the list grows as you scroll",
			"enter opens the book in your browser · ctrl+p shows a text preview",
			"ctrl+u clears the search · esc returns to the genres",
			secondaryStyle.Render("Press esc to go back"),
		)
	}

	if model.verbose {
		view = lipgloss.JoinVertical(lipgloss.Left, view, model.logView())
	}

	return view
}

func (model *model) updateMenu(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	model.menu, cmd = model.menu.Update(msg)

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return cmd
	}
	model.infoMessage = ""

	switch key.String() {
	case "enter":
		selected, ok := model.menu.SelectedItem().(menuItem)
		if !ok {
			return cmd
		}
		switch selected.action {
		case stateBrowse:
			return model.startBrowse(selected.category)
		case stateSettings:
			model.openSettings()
			return nil
		default:
			model.state = selected.action
			return nil
		}
	case "s":
		model.openSettings()
		return nil
	case "q", "ctrl+c":
		return tea.Quit
	}

	return cmd
}

func (model *model) updatePreview(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "q":
			model.state = stateBrowse
			return nil
		case "enter":
			model.state = stateBrowse
			return openBookCmd(model.deps.Opener, model.previewBook)
		case "ctrl+c":
			model.closeBrowse()
			return tea.Quit
		}
	}

	var cmd tea.Cmd
	model.pager, cmd = model.pager.Update(msg)
	return cmd
}

func (model *model) updateInfoScreens(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if ok && (key.String() == "esc" || key.String() == "q") {
		model.state = stateMenu
		return nil
	}
	return nil
}

func (model *model) handleOpened(msg openedMsg) {
	model.infoMessage = ""
	model.errorMessage = ""
	switch {
	case errors.Is(msg.err, catalog.ErrNoViewableVersion):
		model.logger().Debug("no viewable version", zap.Error(msg.err))
		model.errorMessage = "No viewable version available"
	case msg.err != nil:
		model.logger().Warn("unable to open book", zap.Error(msg.err))
		model.errorMessage = msg.err.Error()
	default:
		model.infoMessage = "Opened " + msg.link.URL
	}
}

func (model model) previewView() string {
	lines := []string{
		titleStyle.Render(model.excerpt.Title),
		secondaryStyle.Render(model.excerpt.Source),
		model.pager.View(),
		secondaryStyle.Render("↑/↓ scroll · enter open in browser · esc back"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderExcerpt(excerpt preview.Excerpt, width int) string {
	if len(excerpt.Paragraphs) == 0 {
		return secondaryStyle.Render("No readable text found at the start of this book.")
	}
	if width < 20 {
		width = 20
	}

	style := lipgloss.NewStyle().Width(width)
	paragraphs := make([]string, 0, len(excerpt.Paragraphs))
	for _, paragraph := range excerpt.Paragraphs {
		paragraphs = append(paragraphs, style.Render(paragraph))
	}
	return strings.Join(paragraphs, "\n\n")
}

func (model model) logView() string {
	if len(model.logTail) == 0 {
		return secondaryStyle.Render("Logs: (no entries)")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		secondaryStyle.Render("Logs:"),
		strings.Join(model.logTail, "\n"),
	)
}

func (model model) logger() *zap.Logger {
	if model.deps.Logger == nil {
		return zap.NewNop()
	}
	return model.deps.Logger
}

func genreLabel(category string) string {
	if category == "" {
		return ""
	}
	lower := strings.ToLower(category)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func newMenuList(width, height int) list.Model {
	items := make([]list.Item, 0, len(catalog.Categories)+2)
	for _, category := range catalog.Categories {
		items = append(items, menuItem{
			title:       genreLabel(category),
			description: "Public-domain " + strings.ToLower(category),
			category:    category,
			action:      stateBrowse,
		})
	}
	items = append(items,
		menuItem{title: "Settings", description: "Edit API and relay settings", action: stateSettings},
		menuItem{title: "About/Help", description: "Usage and shortcuts", action: stateAbout},
	)

	menu := list.New(items, list.NewDefaultDelegate(), width, height)
	menu.Title = "Genres"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.SetShowHelp(false)

	return menu
}

func listHeight(height int) int {
	if height <= 10 {
		return height
	}

	return height - 8
}

var (
	accent = lipgloss.AdaptiveColor{Light: "94", Dark: "179"}

	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(accent)
	secondaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("167"))
	focusedStyle    = lipgloss.NewStyle().Foreground(accent)
	blurStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	panelStyle      = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).BorderLeft(true).BorderForeground(lipgloss.Color("238"))
)
