// Package tui is the interactive terminal front end: pick an input, run an
// analysis, watch the summary stream in and ask follow-up questions.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spherical/doc-assistant/internal/analysis"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
	"github.com/spherical/doc-assistant/internal/report"
	"github.com/spherical/doc-assistant/internal/session"
)

// Analyzer starts analysis runs.
type Analyzer interface {
	Start(ctx context.Context, req analysis.Request) <-chan domain.Message
}

// TextReader runs OCR on an image.
type TextReader interface {
	ReadText(ctx context.Context, image []byte) (string, error)
}

// FileLoader reads and validates a PDF from disk.
type FileLoader interface {
	LoadFile(path string) ([]byte, error)
}

// Deps are the collaborators the interface drives.
type Deps struct {
	Session   *session.Session
	Analyzer  Analyzer
	OCR       TextReader
	Answerer  session.Answerer
	PDFLoader FileLoader
	// ReadImage loads an image file; os.ReadFile when nil.
	ReadImage func(path string) ([]byte, error)
	// ReportDir receives exported reports; the working directory when empty.
	ReportDir    string
	PollInterval time.Duration
	Logger       *domain.Logger
}

type field int

const (
	fieldInput field = iota
	fieldChat
)

var sourceKinds = []domain.SourceKind{domain.SourcePDF, domain.SourceText, domain.SourceImage}

// message types

type relayMsg struct {
	msg domain.Message
	err error
}

type ocrResultMsg struct {
	text string
	err  error
}

type answerMsg struct {
	turn domain.ChatTurn
	err  error
}

type exportMsg struct {
	path string
	err  error
}

// model

type model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	logger *domain.Logger

	kind  domain.SourceKind
	depth domain.Depth
	focus field

	pathInput textinput.Model
	textInput textarea.Model
	chatInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	output    viewport.Model

	run        <-chan domain.Message
	display    *relay.Display
	ocrRunning bool
	asking     bool

	notice  string
	warning string
	errText string

	width  int
	height int
}

func newModel(ctx context.Context, deps Deps) model {
	if deps.Session == nil {
		deps.Session = session.New()
	}
	if deps.ReadImage == nil {
		deps.ReadImage = os.ReadFile
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = relay.DefaultPollInterval
	}
	if deps.Logger == nil {
		deps.Logger = domain.DefaultLogger
	}
	ctx, cancel := context.WithCancel(ctx)

	pi := textinput.New()
	pi.Placeholder = "path/to/document.pdf"
	pi.Prompt = "File: "
	pi.PromptStyle = styleInputPrompt
	pi.CharLimit = 1024
	pi.Focus()

	ta := textarea.New()
	ta.Placeholder = "Paste text here..."
	ta.ShowLineNumbers = false
	ta.SetHeight(6)

	ci := textinput.New()
	ci.Placeholder = "Ask a follow-up..."
	ci.Prompt = "> "
	ci.PromptStyle = styleInputPrompt
	ci.CharLimit = 1024

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styleStatus

	return model{
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		logger:    deps.Logger.WithOperation("tui"),
		kind:      domain.SourcePDF,
		depth:     domain.DepthQuick,
		pathInput: pi,
		textInput: ta,
		chatInput: ci,
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		output:    viewport.New(0, 0),
	}
}

// Run starts the interface and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	m := newModel(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if fm, ok := finalModel.(model); ok {
		fm.shutdown()
	} else {
		m.shutdown()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Init starts the cursor blinking.
func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// busy reports whether inputs are locked.
func (m model) busy() bool {
	return m.deps.Session.Busy() || m.ocrRunning
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case relayMsg:
		return m.handleRelay(msg)

	case ocrResultMsg:
		m.ocrRunning = false
		switch {
		case errors.Is(msg.err, domain.ErrNoText):
			_ = m.deps.Session.SetOCRText("")
			m.warning = "No text found in image."
		case msg.err != nil:
			m.errText = domain.UserMessage(msg.err)
		default:
			if err := m.deps.Session.SetOCRText(msg.text); err != nil {
				m.errText = domain.UserMessage(err)
				return m, nil
			}
			m.notice = fmt.Sprintf("Text extracted successfully! (%d characters)", len([]rune(msg.text)))
		}
		return m, nil

	case answerMsg:
		m.asking = false
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
		}
		m.refreshOutput()
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
		} else {
			m.notice = "Report saved to " + msg.path
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, keys.ScrollUp):
		m.output.HalfPageUp()
		return m, nil

	case key.Matches(msg, keys.ScrollDn):
		m.output.HalfPageDown()
		return m, nil

	case key.Matches(msg, keys.NextField):
		m.switchFocus()
		return m, nil

	case key.Matches(msg, keys.Mode):
		if !m.busy() {
			m.cycleKind()
		}
		return m, nil

	case key.Matches(msg, keys.Depth):
		if !m.busy() {
			if m.depth == domain.DepthQuick {
				m.depth = domain.DepthDeep
			} else {
				m.depth = domain.DepthQuick
			}
		}
		return m, nil

	case key.Matches(msg, keys.Run):
		if m.busy() {
			return m, nil
		}
		return m, m.startAnalysis()

	case key.Matches(msg, keys.OCR):
		if m.busy() || m.kind != domain.SourceImage {
			return m, nil
		}
		return m, m.startOCR()

	case key.Matches(msg, keys.Export):
		return m, m.export()

	case key.Matches(msg, keys.Clear):
		m.clearAll()
		return m, nil

	case key.Matches(msg, keys.Ask) && m.focus == fieldChat:
		if m.busy() {
			return m, nil
		}
		return m, m.ask()
	}

	if m.busy() {
		return m, nil
	}

	var cmd tea.Cmd
	switch {
	case m.focus == fieldChat:
		m.chatInput, cmd = m.chatInput.Update(msg)
	case m.kind == domain.SourceText:
		m.textInput, cmd = m.textInput.Update(msg)
	default:
		m.pathInput, cmd = m.pathInput.Update(msg)
	}
	return m, cmd
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.pathInput.Width = max(width-12, 10)
	m.textInput.SetWidth(max(width-6, 10))
	m.chatInput.Width = max(width-8, 10)
	m.progress.Width = min(max(width-20, 10), 60)
	m.output = viewport.New(max(width-4, 10), max(height-22, 5))
	m.refreshOutput()
}

func (m *model) switchFocus() {
	if m.focus == fieldInput {
		m.focus = fieldChat
		m.pathInput.Blur()
		m.textInput.Blur()
		m.chatInput.Focus()
		return
	}
	m.focus = fieldInput
	m.chatInput.Blur()
	m.focusInput()
}

func (m *model) focusInput() {
	if m.kind == domain.SourceText {
		m.pathInput.Blur()
		m.textInput.Focus()
		return
	}
	m.textInput.Blur()
	m.pathInput.Focus()
}

func (m *model) cycleKind() {
	for i, k := range sourceKinds {
		if k == m.kind {
			m.kind = sourceKinds[(i+1)%len(sourceKinds)]
			break
		}
	}
	if m.kind == domain.SourceImage {
		m.pathInput.Placeholder = "path/to/screenshot.png"
	} else {
		m.pathInput.Placeholder = "path/to/document.pdf"
	}
	m.clearBanners()
	if m.focus == fieldInput {
		m.focusInput()
	}
}

func (m *model) clearBanners() {
	m.notice, m.warning, m.errText = "", "", ""
}

// source builds the document source from the current inputs.
func (m *model) source() (domain.Source, error) {
	path := strings.TrimSpace(m.pathInput.Value())
	switch m.kind {
	case domain.SourcePDF:
		if path == "" {
			return domain.Source{Kind: domain.SourcePDF}, nil
		}
		data, err := m.deps.PDFLoader.LoadFile(path)
		if err != nil {
			return domain.Source{}, err
		}
		return domain.Source{Kind: domain.SourcePDF, PDF: data, Name: filepath.Base(path)}, nil
	case domain.SourceText:
		return domain.Source{Kind: domain.SourceText, Text: m.textInput.Value()}, nil
	default:
		return domain.Source{Kind: domain.SourceImage, Name: filepath.Base(path)}, nil
	}
}

func (m *model) startAnalysis() tea.Cmd {
	m.clearBanners()

	src, err := m.source()
	if err == nil {
		src, err = m.deps.Session.Prepare(src)
	}
	if err == nil {
		err = m.deps.Session.BeginAnalysis()
	}
	if err != nil {
		m.errText = domain.UserMessage(err)
		return nil
	}

	m.display = relay.NewDisplay()
	m.run = m.deps.Analyzer.Start(m.ctx, analysis.Request{Source: src, Depth: m.depth})
	m.refreshOutput()
	m.logger.Info().Str("source", string(src.Kind)).Str("depth", string(m.depth)).Msg("Analysis started")

	return tea.Batch(m.poll(), m.spinner.Tick)
}

// poll waits for the next message of the current run.
func (m model) poll() tea.Cmd {
	ch, interval := m.run, m.deps.PollInterval
	return func() tea.Msg {
		msg, err := relay.Poll(ch, interval)
		return relayMsg{msg: msg, err: err}
	}
}

func (m model) handleRelay(msg relayMsg) (tea.Model, tea.Cmd) {
	if m.run == nil {
		return m, nil
	}

	switch {
	case errors.Is(msg.err, relay.ErrTimeout):
		return m, m.poll()
	case errors.Is(msg.err, relay.ErrClosed):
		m.finishRun()
		return m, nil
	}

	done := m.display.Apply(msg.msg)
	m.refreshOutput()
	if done {
		m.finishRun()
		return m, nil
	}
	return m, m.poll()
}

func (m *model) finishRun() {
	out := m.display.Outcome()
	if !m.display.Done && out.Err == nil {
		out.Err = domain.ExtractionError("analysis ended without completing", nil)
		m.display.Err = out.Err
	}
	m.deps.Session.Commit(out)
	m.run = nil

	if out.Err != nil {
		m.errText = domain.UserMessage(out.Err)
		m.logger.Warn().Err(out.Err).Msg("Analysis finished with error")
	} else {
		m.logger.Info().Int("summary_chars", len(out.Summary)).Msg("Analysis finished")
	}
	m.refreshOutput()
}

func (m *model) startOCR() tea.Cmd {
	m.clearBanners()
	path := strings.TrimSpace(m.pathInput.Value())
	if path == "" {
		m.errText = "Choose an image file first."
		return nil
	}
	m.ocrRunning = true

	ctx, reader, read := m.ctx, m.deps.OCR, m.deps.ReadImage
	return tea.Batch(func() tea.Msg {
		data, err := read(path)
		if err != nil {
			return ocrResultMsg{err: domain.IOError("Failed to read image", err)}
		}
		text, err := reader.ReadText(ctx, data)
		return ocrResultMsg{text: text, err: err}
	}, m.spinner.Tick)
}

func (m *model) ask() tea.Cmd {
	m.clearBanners()
	if err := m.deps.Session.Ask(m.chatInput.Value()); err != nil {
		m.errText = domain.UserMessage(err)
		return nil
	}
	m.chatInput.Reset()
	m.asking = true
	m.refreshOutput()

	ctx, sess, answerer := m.ctx, m.deps.Session, m.deps.Answerer
	return tea.Batch(func() tea.Msg {
		turn, err := sess.AnswerPending(ctx, answerer)
		return answerMsg{turn: turn, err: err}
	}, m.spinner.Tick)
}

func (m *model) export() tea.Cmd {
	summary := m.deps.Session.Summary()
	if summary == "" {
		m.warning = "Nothing to export yet."
		return nil
	}

	info := ""
	if name := filepath.Base(strings.TrimSpace(m.pathInput.Value())); m.kind != domain.SourceText && name != "." {
		info = "Source: " + name
	}
	dir := m.deps.ReportDir

	return func() tea.Msg {
		now := time.Now()
		data, err := report.Render(summary, report.Options{DocumentInfo: info, Now: now})
		if err != nil {
			return exportMsg{err: err}
		}
		path := filepath.Join(dir, report.FileName(now))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return exportMsg{err: domain.IOError("Failed to save report", err)}
		}
		return exportMsg{path: path}
	}
}

func (m *model) clearAll() {
	if err := m.deps.Session.Clear(); err != nil {
		m.errText = domain.UserMessage(err)
		return
	}
	m.pathInput.Reset()
	m.textInput.Reset()
	m.chatInput.Reset()
	m.display = nil
	m.clearBanners()
	m.notice = "All data cleared."
	m.refreshOutput()
}

// shutdown cancels outstanding work. An abandoned run is drained so its
// worker can exit.
func (m model) shutdown() {
	m.cancel()
	if m.run != nil {
		go relay.Drain(m.run)
	}
}
