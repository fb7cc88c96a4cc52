package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spherical/doc-assistant/internal/domain"
)

// View renders the interface.
func (m model) View() string {
	var b strings.Builder

	b.WriteString(styleHeader.Render("Doc Assistant"))
	b.WriteString("\n\n")
	b.WriteString(m.renderSelectors())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")

	if line := m.renderActivity(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if line := m.renderBanner(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(styleTitle.Render("Document Summary"))
	b.WriteString("\n")
	b.WriteString(stylePanel.Render(m.output.View()))
	b.WriteString("\n")

	if m.deps.Session.Summary() != "" {
		style := stylePanel
		if m.focus == fieldChat {
			style = styleActivePanel
		}
		b.WriteString(style.Render(m.chatInput.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

func (m model) renderSelectors() string {
	kinds := make([]string, 0, len(sourceKinds))
	for _, k := range sourceKinds {
		kinds = append(kinds, option(k.Label(), k == m.kind))
	}
	depths := []string{
		option(domain.DepthQuick.Label(), m.depth == domain.DepthQuick),
		option(domain.DepthDeep.Label(), m.depth == domain.DepthDeep),
	}
	return "Input:  " + strings.Join(kinds, "  ") + "\n" +
		"Depth:  " + strings.Join(depths, "  ") + "\n"
}

func option(label string, selected bool) string {
	if selected {
		return styleOptionSelected.Render("(•) " + label)
	}
	return styleOption.Render("( ) " + label)
}

func (m model) renderInput() string {
	style := stylePanel
	if m.focus == fieldInput {
		style = styleActivePanel
	}

	switch m.kind {
	case domain.SourceText:
		return style.Render(m.textInput.View())
	case domain.SourceImage:
		body := m.pathInput.View()
		if n := len([]rune(m.deps.Session.DocumentText())); n > 0 {
			body += "\n" + styleNotice.Render(fmt.Sprintf("OCR text ready (%d characters)", n))
		}
		return style.Render(body)
	default:
		return style.Render(m.pathInput.View())
	}
}

// renderActivity shows the loading elements: spinner, status and progress.
func (m model) renderActivity() string {
	switch {
	case m.ocrRunning:
		return m.spinner.View() + styleStatus.Render(" Scanning for text...")
	case m.asking:
		return m.spinner.View() + styleStatus.Render(" Searching context...")
	case m.run != nil && m.display != nil && m.display.Loading:
		line := m.spinner.View() + " " + styleStatus.Render(m.display.Status)
		if m.depth == domain.DepthDeep && m.display.Fraction > 0 {
			line += "\n" + m.progress.ViewAs(m.display.Fraction)
		}
		return line
	}
	return ""
}

func (m model) renderBanner() string {
	switch {
	case m.errText != "":
		return styleError.Render("✗ " + m.errText)
	case m.warning != "":
		return styleWarning.Render("⚠ " + m.warning)
	case m.notice != "":
		return styleNotice.Render("✓ " + m.notice)
	}
	return ""
}

func (m model) renderHelp() string {
	bindings := []string{
		keys.Mode.Help().Key + " " + keys.Mode.Help().Desc,
		keys.Depth.Help().Key + " " + keys.Depth.Help().Desc,
		keys.Run.Help().Key + " " + keys.Run.Help().Desc,
	}
	if m.kind == domain.SourceImage {
		bindings = append(bindings, keys.OCR.Help().Key+" "+keys.OCR.Help().Desc)
	}
	bindings = append(bindings,
		keys.NextField.Help().Key+" "+keys.NextField.Help().Desc,
		keys.Export.Help().Key+" "+keys.Export.Help().Desc,
		keys.Clear.Help().Key+" "+keys.Clear.Help().Desc,
		keys.Quit.Help().Key+" "+keys.Quit.Help().Desc,
	)
	if m.busy() {
		bindings = []string{"processing...", keys.Quit.Help().Key + " " + keys.Quit.Help().Desc}
	}
	return styleStatusBar.Render(strings.Join(bindings, " • "))
}

// refreshOutput redraws the summary panel.
func (m *model) refreshOutput() {
	content := m.outputText()
	if m.output.Width > 0 {
		content = lipgloss.NewStyle().Width(m.output.Width).Render(content)
	}
	m.output.SetContent(content)
	m.output.GotoBottom()
}

// outputText is the live stream while a run is outstanding, or the partial
// output of a failed run until the next run or clear. Otherwise it is the
// committed summary followed by the transcript.
func (m *model) outputText() string {
	var b strings.Builder
	if m.display != nil && (m.run != nil || m.display.Err != nil) {
		b.WriteString(m.display.Rendered())
	} else {
		b.WriteString(m.deps.Session.Summary())
		for _, turn := range m.deps.Session.Transcript() {
			b.WriteString("\n\n")
			if turn.Role == domain.RoleUser {
				b.WriteString(styleUser.Render("You: "))
			} else {
				b.WriteString(styleAssistant.Render("Assistant: "))
			}
			b.WriteString(turn.Content)
		}
	}
	return b.String()
}
