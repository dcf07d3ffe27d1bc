package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultErrorDismiss = 5 * time.Second
	defaultLoadingTitle = "Loading Video..."
	errorHint           = "Please try again or check that the video has auto-generated captions available."
)

var (
	colorCyan = lipgloss.Color("#00FFFF")
	colorRed  = lipgloss.Color("#FF0000")
	colorGray = lipgloss.Color("#666666")

	overlayBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorCyan).
			Padding(1, 2)

	errorBoxStyle = overlayBoxStyle.
			BorderForeground(colorRed)

	overlayTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorCyan)

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayLoading
	overlayResult
	overlayError
)

// ShowLoadingMsg replaces the current overlay with a loading indicator.
// An empty Title means transcript extraction.
type ShowLoadingMsg struct {
	Title string
}

// ShowResultMsg replaces the current overlay with a transcript or summary
type ShowResultMsg struct {
	Title     string
	Content   string
	VideoID   string
	Timestamp time.Time
	// Error is set when the content is a fallback for a failed step
	Error string
}

// ShowErrorMsg replaces the current overlay with an error that dismisses itself
type ShowErrorMsg struct {
	Message string
}

type dismissOverlayMsg struct{ seq int }

// OverlayModel shows at most one overlay at a time
type OverlayModel struct {
	kind    overlayKind
	seq     int
	loading ShowLoadingMsg
	result  ShowResultMsg
	errText string

	errorDismiss time.Duration
	width        int
}

// NewOverlayModel creates an empty overlay model
func NewOverlayModel(settings OverlaySettings) OverlayModel {
	return OverlayModel{errorDismiss: settings.ErrorDismiss, width: 80}
}

func (m OverlayModel) Init() tea.Cmd {
	return nil
}

func (m OverlayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "x":
			m.dismiss()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case ShowLoadingMsg:
		m.replace(overlayLoading)
		m.loading = msg
		return m, nil

	case ShowResultMsg:
		m.replace(overlayResult)
		m.result = msg
		return m, nil

	case ShowErrorMsg:
		m.replace(overlayError)
		m.errText = msg.Message
		return m, dismissErrorCmd(m.seq, m.dismissAfter())

	case dismissOverlayMsg:
		// Only the overlay the timer was started for may be dismissed
		if msg.seq == m.seq && m.kind == overlayError {
			m.dismiss()
		}
		return m, nil
	}
	return m, nil
}

func (m *OverlayModel) replace(kind overlayKind) {
	m.seq++
	m.kind = kind
}

func (m *OverlayModel) dismiss() {
	m.seq++
	m.kind = overlayNone
}

// dismissAfter is how long an error overlay stays up
func (m OverlayModel) dismissAfter() time.Duration {
	if m.errorDismiss <= 0 {
		return defaultErrorDismiss
	}
	return m.errorDismiss
}

// dismissErrorCmd fires after a delay to clear the error overlay seq.
func dismissErrorCmd(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return dismissOverlayMsg{seq: seq}
	})
}

func (m OverlayModel) View() string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	switch m.kind {
	case overlayLoading:
		title, subtitle, estimate := m.loading.Title, "Please wait while we process your request...", "This may take 5-10 seconds"
		if title == "" {
			title, subtitle, estimate = defaultLoadingTitle, "Extracting captions from video player...", "This may take 10-15 seconds"
		}
		return overlayBoxStyle.Width(width).Render(strings.Join([]string{
			overlayTitleStyle.Render("⏳ " + title),
			subtitle,
			dimStyle.Render(estimate),
		}, "\n"))

	case overlayResult:
		r := m.result
		lines := []string{
			overlayTitleStyle.Render(r.Title),
			fmt.Sprintf("Full Transcript (%d characters)", utf8.RuneCountInString(r.Content)),
			"",
			r.Content,
			"",
		}
		if r.Error != "" {
			lines = append(lines, errorTitleStyle.Render("Summarization error: ")+r.Error)
		}
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Video ID: %s | Extracted: %s",
			r.VideoID, r.Timestamp.Local().Format(time.DateTime))))
		return overlayBoxStyle.Width(width).Render(strings.Join(lines, "\n"))

	case overlayError:
		return errorBoxStyle.Width(width).Render(strings.Join([]string{
			errorTitleStyle.Render("⚠️ Error"),
			m.errText,
			dimStyle.Render(errorHint),
		}, "\n"))
	}
	return dimStyle.Render("esc/x close • q quit")
}

// Presenter receives overlay requests from the processor
type Presenter interface {
	ShowLoading(title string)
	ShowResult(msg ShowResultMsg)
	ShowError(message string)
}

// programPresenter forwards overlays to a running TUI
type programPresenter struct {
	program *tea.Program
}

func (p programPresenter) ShowLoading(title string) { p.program.Send(ShowLoadingMsg{Title: title}) }
func (p programPresenter) ShowResult(msg ShowResultMsg) { p.program.Send(msg) }
func (p programPresenter) ShowError(message string) { p.program.Send(ShowErrorMsg{Message: message}) }

// textPresenter renders each overlay once, for non-interactive commands
type textPresenter struct {
	mu    sync.Mutex
	w     io.Writer
	model OverlayModel
}

func newTextPresenter(w io.Writer, settings OverlaySettings) *textPresenter {
	return &textPresenter{w: w, model: NewOverlayModel(settings)}
}

func (p *textPresenter) ShowLoading(title string) { p.render(ShowLoadingMsg{Title: title}) }
func (p *textPresenter) ShowResult(msg ShowResultMsg) { p.render(msg) }
func (p *textPresenter) ShowError(message string) { p.render(ShowErrorMsg{Message: message}) }

func (p *textPresenter) render(msg tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	updated, _ := p.model.Update(msg)
	p.model = updated.(OverlayModel)
	fmt.Fprintln(p.w, p.model.View())
}
