package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ssh-vom/gutenberg-browse/internal/config"
	"github.com/ssh-vom/gutenberg-browse/internal/cover"
)

type settingsField int

const (
	fieldAPIURL settingsField = iota
	fieldRelayURL
	fieldDebounce
	fieldRateLimit
	fieldCount
)

var settingsLabels = [fieldCount]string{
	fieldAPIURL:    "API URL: ",
	fieldRelayURL:  "Relay URL: ",
	fieldDebounce:  "Search delay (ms): ",
	fieldRateLimit: "Requests/sec: ",
}

type settingsForm struct {
	inputs  [fieldCount]textinput.Model
	focused settingsField
	status  string
	failed  bool
}

func newSettingsForm(cfg config.Config) settingsForm {
	values := [fieldCount]string{
		fieldAPIURL:    cfg.APIURL,
		fieldRelayURL:  cfg.RelayURL,
		fieldDebounce:  strconv.Itoa(cfg.DebounceMS),
		fieldRateLimit: strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64),
	}

	var form settingsForm
	for field := range fieldCount {
		input := textinput.New()
		input.Prompt = settingsLabels[field]
		input.CharLimit = 200
		input.SetValue(values[field])
		form.inputs[field] = input
	}
	form.inputs[fieldRelayURL].Placeholder = "optional, e.g. http://localhost:8080"
	form.focus(fieldAPIURL)
	return form
}

// focus moves the cursor to field, wrapping at both ends.
func (form *settingsForm) focus(field settingsField) {
	form.focused = (field%fieldCount + fieldCount) % fieldCount
	for i := range form.inputs {
		if settingsField(i) == form.focused {
			form.inputs[i].Focus()
			form.inputs[i].PromptStyle = focusedStyle
			form.inputs[i].TextStyle = focusedStyle
			continue
		}
		form.inputs[i].Blur()
		form.inputs[i].PromptStyle = blurStyle
		form.inputs[i].TextStyle = blurStyle
	}
}

func (form *settingsForm) report(err error) {
	form.status = err.Error()
	form.failed = true
}

func (form *settingsForm) notice(text string) {
	form.status = text
	form.failed = false
}

// apply copies the form onto cfg and validates the result.
func (form settingsForm) apply(cfg config.Config) (config.Config, error) {
	value := func(field settingsField) string {
		return strings.TrimSpace(form.inputs[field].Value())
	}

	cfg.APIURL = value(fieldAPIURL)
	cfg.RelayURL = value(fieldRelayURL)
	if cfg.APIURL == "" && cfg.RelayURL == "" {
		return cfg, errors.New("api url or relay url is required")
	}

	if raw := value(fieldDebounce); raw != "" {
		debounce, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("search delay must be a number of milliseconds: %w", err)
		}
		cfg.DebounceMS = debounce
	}
	if raw := value(fieldRateLimit); raw != "" {
		rateLimit, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, fmt.Errorf("requests/sec must be a number: %w", err)
		}
		cfg.RateLimit = rateLimit
	}

	return cfg, cfg.Validate()
}

func (model *model) openSettings() {
	model.settings = newSettingsForm(model.config)
	model.state = stateSettings
}

func (model *model) updateSettings(msg tea.Msg) tea.Cmd {
	form := &model.settings
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			model.state = stateMenu
			return nil
		case "tab", "down":
			form.focus(form.focused + 1)
			return nil
		case "shift+tab", "up":
			form.focus(form.focused - 1)
			return nil
		case "enter":
			model.saveSettings()
			return nil
		case "ctrl+x":
			model.clearCovers()
			return nil
		}
	}

	var cmd tea.Cmd
	form.inputs[form.focused], cmd = form.inputs[form.focused].Update(msg)
	return cmd
}

func (model *model) clearCovers() {
	if err := model.deps.Covers.Clear(); err != nil {
		model.settings.report(err)
		return
	}
	model.coverImages = map[string]cover.Image{}
	model.coverErrors = map[string]string{}
	model.coverLoadingURL = ""
	model.settings.notice("Cover cache cleared.")
}

// saveSettings persists the form and rebuilds the dependencies so the next
// browse session uses the new endpoint.
func (model *model) saveSettings() {
	updated, err := model.settings.apply(model.config)
	if err != nil {
		model.settings.report(err)
		return
	}
	if err := config.SaveConfig(updated); err != nil {
		model.settings.report(err)
		return
	}

	model.config = updated
	if model.buildDeps != nil {
		deps, err := model.buildDeps(updated)
		if err != nil {
			model.settings.report(err)
			return
		}
		model.deps = deps
	}

	model.errorMessage = ""
	model.infoMessage = "Settings saved."
	model.state = stateMenu
}

func (model model) settingsView() string {
	form := model.settings
	lines := []string{
		titleStyle.Render("Settings"),
		secondaryStyle.Render("Where book listings come from and how often they are requested."),
	}
	for _, input := range form.inputs {
		lines = append(lines, input.View())
	}

	switch {
	case form.status == "":
	case form.failed:
		lines = append(lines, warningStyle.Render(form.status))
	default:
		lines = append(lines, secondaryStyle.Render(form.status))
	}

	lines = append(lines, secondaryStyle.Render("tab/↑/↓ field · enter save · ctrl+x clear cover cache · esc cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
