package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ssh-vom/gutenberg-browse/internal/browse"
	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/config"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books"
)

type pagedProvider struct {
	total int
}

func (provider pagedProvider) FetchPage(ctx context.Context, request books.Request) (catalog.Page, error) {
	from := (request.Page-1)*25 + 1
	to := min(request.Page*25, provider.total)
	page := catalog.Page{Total: provider.total}
	for i := from; i <= to; i++ {
		page.Books = append(page.Books, catalog.Book{ID: fmt.Sprint(i), Title: fmt.Sprintf("%s %d", request.Topic, i)})
	}
	return page, nil
}

func (provider pagedProvider) FetchCover(ctx context.Context, coverURL string) ([]byte, error) {
	return nil, errors.New("no covers")
}

func newTestModel(provider books.Provider) model {
	cfg := config.DefaultConfig()
	cfg.DebounceMS = 10
	m := NewModel(cfg, Dependencies{Provider: provider}, nil, nil, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(model)
}

func press(m model, key string) model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "end":
		msg = tea.KeyMsg{Type: tea.KeyEnd}
	case "ctrl+u":
		msg = tea.KeyMsg{Type: tea.KeyCtrlU}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, _ := m.Update(msg)
	return updated.(model)
}

// nextSnapshot feeds coordinator snapshots into the model until predicate
// holds.
func nextSnapshot(t *testing.T, m model, predicate func(browse.Snapshot) bool) model {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-m.coordinator.Updates():
			updated, _ := m.Update(snapshotMsg{source: m.coordinator, snapshot: snapshot})
			m = updated.(model)
			if predicate(m.snapshot) {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out, last snapshot: %+v", m.snapshot)
		}
	}
}

func idle(snapshot browse.Snapshot) bool { return snapshot.TotalKnown && !snapshot.Loading }

func TestSelectingGenreStartsBrowsing(t *testing.T) {
	m := newTestModel(pagedProvider{total: 30})
	m = press(m, "enter")
	defer m.closeBrowse()

	if m.state != stateBrowse || m.coordinator == nil {
		t.Fatalf("expected browse state with a coordinator, got state %d", m.state)
	}

	m = nextSnapshot(t, m, idle)
	if m.snapshot.Category != "FICTION" {
		t.Fatalf("unexpected category %q", m.snapshot.Category)
	}
	if len(m.resultsList.Items()) == 0 {
		t.Fatalf("expected list items")
	}
	if !strings.Contains(m.View(), "book(s)") {
		t.Fatalf("expected header in view")
	}
}

func TestScrollingToEndLoadsMore(t *testing.T) {
	m := newTestModel(pagedProvider{total: 60})
	m = press(m, "enter")
	defer m.closeBrowse()

	m = nextSnapshot(t, m, idle)
	m = press(m, "end")
	m = nextSnapshot(t, m, func(s browse.Snapshot) bool { return idle(s) && s.LoadedCount == 50 })

	if len(m.resultsList.Items()) != 50 {
		t.Fatalf("expected 50 items, got %d", len(m.resultsList.Items()))
	}
}

func TestEscClosesSession(t *testing.T) {
	m := newTestModel(pagedProvider{total: 5})
	m = press(m, "enter")
	coordinator := m.coordinator

	m = press(m, "esc")
	if m.state != stateMenu || m.coordinator != nil {
		t.Fatalf("expected menu without coordinator")
	}
	if !coordinator.Snapshot().Closed {
		t.Fatalf("expected coordinator to be closed")
	}

	updated, _ := m.Update(snapshotMsg{source: coordinator, snapshot: browse.Snapshot{Category: "STALE"}})
	if updated.(model).snapshot.Category == "STALE" {
		t.Fatalf("snapshot from a closed session was applied")
	}
}

func TestCtrlCQuitsWhilePreviewLoads(t *testing.T) {
	m := newTestModel(pagedProvider{total: 5})
	m = press(m, "enter")
	coordinator := m.coordinator
	m.state = statePreviewLoading

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if updated.(model).coordinator != nil || !coordinator.Snapshot().Closed {
		t.Fatalf("expected browse session closed")
	}
}

func TestTypingFeedsSearch(t *testing.T) {
	m := newTestModel(pagedProvider{total: 5})
	m = press(m, "enter")
	defer m.closeBrowse()

	m = press(m, "t")
	m = press(m, "w")
	m = nextSnapshot(t, m, func(s browse.Snapshot) bool { return s.SearchTerm == "tw" && idle(s) })

	m = press(m, "ctrl+u")
	if m.searchInput.Value() != "" {
		t.Fatalf("expected cleared input")
	}
	nextSnapshot(t, m, func(s browse.Snapshot) bool { return s.SearchTerm == "" && idle(s) })
}

func TestBrowseWithoutProvider(t *testing.T) {
	m := newTestModel(nil)
	m = press(m, "enter")
	if m.state != stateMenu || m.errorMessage == "" {
		t.Fatalf("expected error on menu, got state %d %q", m.state, m.errorMessage)
	}
}

func TestHandleOpened(t *testing.T) {
	m := newTestModel(nil)

	m.handleOpened(openedMsg{err: catalog.ErrNoViewableVersion})
	if m.errorMessage != "No viewable version available" {
		t.Fatalf("unexpected message %q", m.errorMessage)
	}

	m.handleOpened(openedMsg{link: catalog.Link{URL: "https://g.org/1.html"}})
	if m.errorMessage != "" || m.infoMessage != "Opened https://g.org/1.html" {
		t.Fatalf("unexpected messages %q %q", m.errorMessage, m.infoMessage)
	}
}

func TestHeaderLine(t *testing.T) {
	cases := []struct {
		snapshot browse.Snapshot
		want     string
	}{
		{browse.Snapshot{}, ""},
		{browse.Snapshot{TotalKnown: true, Total: 60, LoadedCount: 25}, "60 book(s) · Loaded 25"},
		{browse.Snapshot{TotalKnown: true, Total: 55, LoadedCount: 55}, "55 book(s)"},
	}
	for _, tc := range cases {
		if got := headerLine(tc.snapshot); got != tc.want {
			t.Errorf("headerLine(%+v) = %q, want %q", tc.snapshot, got, tc.want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine(browse.Snapshot{Loading: true}, "*"); got != "* Loading..." {
		t.Fatalf("unexpected loading line %q", got)
	}
	if got := statusLine(browse.Snapshot{TotalKnown: true, ErrMessage: browse.ResetFailedMessage}, ""); !strings.Contains(got, browse.ResetFailedMessage) {
		t.Fatalf("unexpected error line %q", got)
	}
	if got := statusLine(browse.Snapshot{TotalKnown: true}, ""); !strings.Contains(got, "No books found") {
		t.Fatalf("unexpected empty line %q", got)
	}
	if got := statusLine(browse.Snapshot{TotalKnown: true, Books: []catalog.Book{{ID: "1"}}}, ""); got != "" {
		t.Fatalf("expected no status, got %q", got)
	}
}

func TestSentinelVisible(t *testing.T) {
	cases := []struct {
		index, count, perPage int
		want                  bool
	}{
		{0, 0, 10, false},
		{0, 5, 10, true},
		{0, 25, 10, false},
		{22, 25, 10, true},
		{20, 25, 10, true},
		{19, 25, 10, false},
	}
	for _, tc := range cases {
		if got := sentinelVisible(tc.index, tc.count, tc.perPage); got != tc.want {
			t.Errorf("sentinelVisible(%d, %d, %d) = %v, want %v", tc.index, tc.count, tc.perPage, got, tc.want)
		}
	}
}

func TestSettingsFormApply(t *testing.T) {
	form := newSettingsForm(config.DefaultConfig())

	form.inputs[fieldAPIURL].SetValue("")
	if _, err := form.apply(config.DefaultConfig()); err == nil {
		t.Fatalf("expected error without any url")
	}

	form.inputs[fieldRelayURL].SetValue("localhost:8080")
	form.inputs[fieldDebounce].SetValue("soon")
	if _, err := form.apply(config.DefaultConfig()); err == nil {
		t.Fatalf("expected error for non-numeric delay")
	}

	form.inputs[fieldDebounce].SetValue("-5")
	if _, err := form.apply(config.DefaultConfig()); err == nil {
		t.Fatalf("expected error for negative delay")
	}

	form.inputs[fieldDebounce].SetValue("200")
	form.inputs[fieldRateLimit].SetValue("2.5")
	cfg, err := form.apply(config.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RelayURL != "localhost:8080" || cfg.PageSize != config.DefaultPageSize || cfg.DebounceMS != 200 || cfg.RateLimit != 2.5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestSettingsFormFocusWraps(t *testing.T) {
	form := newSettingsForm(config.DefaultConfig())
	if form.focused != fieldAPIURL || !form.inputs[fieldAPIURL].Focused() {
		t.Fatalf("expected first field focused")
	}

	form.focus(form.focused - 1)
	if form.focused != fieldRateLimit {
		t.Fatalf("expected wrap to last field, got %d", form.focused)
	}
	form.focus(form.focused + 1)
	if form.focused != fieldAPIURL {
		t.Fatalf("expected wrap to first field, got %d", form.focused)
	}
	if form.inputs[fieldRateLimit].Focused() {
		t.Fatalf("previous field still focused")
	}
}

func TestSettingsEscReturnsToMenu(t *testing.T) {
	m := newTestModel(nil)
	m = press(m, "s")
	if m.state != stateSettings {
		t.Fatalf("expected settings, got state %d", m.state)
	}
	if m.settings.inputs[fieldAPIURL].Value() != config.DefaultAPIURL {
		t.Fatalf("unexpected api url %q", m.settings.inputs[fieldAPIURL].Value())
	}
	m = press(m, "esc")
	if m.state != stateMenu {
		t.Fatalf("expected menu, got state %d", m.state)
	}
}

func TestCoverRenderSize(t *testing.T) {
	cols, rows := coverRenderSize(30, 100, 150)
	if cols != 28 || rows != 21 {
		t.Fatalf("unexpected size %dx%d", cols, rows)
	}
	if _, rows := coverRenderSize(10, 0, 0); rows != 12 {
		t.Fatalf("expected default rows, got %d", rows)
	}
}

func TestGenreLabel(t *testing.T) {
	if got := genreLabel("PHILOSOPHY"); got != "Philosophy" {
		t.Fatalf("unexpected label %q", got)
	}
}
