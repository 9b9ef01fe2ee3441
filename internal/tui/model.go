package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/domain"
	"ragqa/internal/service"
	"ragqa/internal/session"
)

const recentCount = 5

// Options control what the conversation view shows.
type Options struct {
	ShowContext       bool
	MaxContextChunks  int
	ConfidenceDisplay string // "percentage" or "bar"
	ExportDir         string
	Source            string
	Summary           string
}

// answerMsg carries the result of an asynchronous question.
type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx        context.Context
	qa         service.QuestionAnswerer
	transcript *session.Transcript
	opts       Options

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	bar      progress.Model

	thinking bool
	pending  string
	status   string
	errMsg   string
	ready    bool
	width    int
	now      func() time.Time
}

// New creates a new TUI model instance.
func New(ctx context.Context, qa service.QuestionAnswerer, transcript *session.Transcript, opts Options) Model {
	if opts.MaxContextChunks <= 0 || opts.MaxContextChunks > 4 {
		opts.MaxContextChunks = 4
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the document and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:        ctx,
		qa:         qa,
		transcript: transcript,
		opts:       opts,
		input:      ti,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
		status:     "Ready. Ask a question.",
		now:        time.Now,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(question string) tea.Cmd {
	ctx, qa := m.ctx, m.qa
	return func() tea.Msg {
		ans, err := qa.AnswerQuestion(ctx, question)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, fh := boxStyle.GetFrameSize()
		reserved := 3 + fh + 3 // header lines, input box, status
		m.viewport.Width = max(20, m.conversationWidth()-fh)
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.thinking = false
		m.pending = ""
		if msg.err != nil {
			m.errMsg = describeError(msg.err)
			m.status = "The question could not be answered."
		} else {
			m.errMsg = ""
			m.transcript.Append(msg.question, msg.answer, m.now())
			if msg.answer.NotFound() {
				m.status = "No relevant passage found in the document."
			} else {
				m.status = fmt.Sprintf("Answered from %d passage(s).", len(msg.answer.Context))
			}
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d", "esc":
			return m, tea.Quit
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.thinking {
				return m, nil
			}
			m.input.Reset()
			m.thinking = true
			m.pending = q
			m.errMsg = ""
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "ctrl+t":
			m.opts.ShowContext = !m.opts.ShowContext
			m.refresh()
			return m, nil
		case "ctrl+l":
			m.transcript.Clear()
			m.errMsg = ""
			m.status = "Conversation cleared."
			m.refresh()
			return m, nil
		case "ctrl+e":
			path, err := m.exportTranscript()
			m.setResult("Conversation exported to "+path, err)
			return m, nil
		case "ctrl+s":
			path, err := m.saveLastAnswer()
			m.setResult("Answer saved to "+path, err)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setResult(ok string, err error) {
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.status = ok
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
}

func (m Model) conversationWidth() int {
	if m.width >= 100 {
		return m.width * 2 / 3
	}
	return m.width
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Document Q&A")
	about := mutedStyle.Render(m.about())
	body := boxStyle.Render(m.viewport.View())
	if m.width >= 100 {
		side := boxStyle.Width(m.width - m.conversationWidth() - 4).Render(m.renderRecent())
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, side)
	}
	input := boxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if m.thinking {
		status = m.spinner.View() + " " + status
	}
	if m.errMsg != "" {
		status = errorStyle.Render("Error: " + m.errMsg)
	}
	help := mutedStyle.Render("enter ask • ctrl+t context • ctrl+l clear • ctrl+e export • ctrl+s save answer • esc quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, about, body, input, status, help)
}

func (m Model) about() string {
	if m.opts.Source == "" {
		return "No sources described."
	}
	about := "Sources: " + m.opts.Source
	if m.opts.Summary != "" {
		about += " | " + strings.Join(strings.Fields(m.opts.Summary), " ")
	}
	return about
}

func (m Model) renderConversation() string {
	entries := m.transcript.Entries()
	if len(entries) == 0 && m.pending == "" {
		return mutedStyle.Render("No questions yet.")
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("You: ") + e.Question + "\n")
		if e.NotFound {
			b.WriteString(notFoundStyle.Render("Assistant: "+e.Answer) + "\n")
		} else {
			b.WriteString(answerStyle.Render("Assistant: ") + e.Answer + "\n")
		}
		b.WriteString(m.renderConfidence(e.Confidence) + "\n")
		if m.opts.ShowContext && !e.NotFound {
			b.WriteString(m.renderContext(e.Context, e.Question))
		}
	}
	if m.pending != "" {
		if len(entries) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("You: ") + m.pending + "\n")
		b.WriteString(mutedStyle.Render("Thinking...") + "\n")
	}
	return b.String()
}

func (m Model) renderConfidence(c float64) string {
	if m.opts.ConfidenceDisplay == "bar" {
		return "Confidence " + m.bar.ViewAs(c)
	}
	return fmt.Sprintf("Confidence: %.0f%%", c*100)
}

func (m Model) renderContext(passages []string, question string) string {
	n := min(len(passages), m.opts.MaxContextChunks)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  [%d] ", i+1)))
		b.WriteString(highlightBestSentence(passages[i], question))
		b.WriteString("\n")
	}
	if len(passages) > n {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  (+%d more)", len(passages)-n)) + "\n")
	}
	return b.String()
}

func (m Model) renderRecent() string {
	recent := m.transcript.Recent(recentCount)
	lines := []string{titleStyle.Render("Recent")}
	if len(recent) == 0 {
		lines = append(lines, mutedStyle.Render("none"))
	}
	for _, e := range recent {
		lines = append(lines, "• "+truncate(e.Question, 40))
	}
	return strings.Join(lines, "\n")
}

func (m Model) exportTranscript() (string, error) {
	if m.transcript.Len() == 0 {
		return "", errors.New("nothing to export")
	}
	path := filepath.Join(m.opts.ExportDir, session.ExportFileName(m.now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := m.transcript.ExportJSON(f); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func (m Model) saveLastAnswer() (string, error) {
	entries := m.transcript.Entries()
	if len(entries) == 0 {
		return "", errors.New("no answer to save")
	}
	last := entries[len(entries)-1]
	path := filepath.Join(m.opts.ExportDir, session.AnswerFileName(len(entries)))
	content := fmt.Sprintf("Question: %s\n\nAnswer: %s\n", last.Question, last.Answer)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save answer: %w", err)
	}
	return path, nil
}

// describeError tells "could not answer" failures apart by cause.
func describeError(err error) string {
	switch {
	case domain.IsConfiguration(err):
		return "configuration problem: " + err.Error()
	case domain.IsRetrieval(err):
		return "could not search the document: " + err.Error()
	case domain.IsGeneration(err):
		return "the language model failed: " + err.Error()
	default:
		return err.Error()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
