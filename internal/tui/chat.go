package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/solaceapp/solace/internal/conversation"
)

// ansiRules reuse the shared rewrite engine with terminal escape codes:
// the recall signature renders dim, *emphasis* renders italic.
var ansiRules = []conversation.Rule{
	{Pattern: regexp.MustCompile(`— \*(.*?)\*`), Replace: "\x1b[2m— $1\x1b[0m"},
	{Pattern: regexp.MustCompile(`\*([^*]+)\*`), Replace: "\x1b[3m$1\x1b[0m"},
}

// renderBody prepares one message for the terminal: escape first, then
// rewrite. Control bytes are stripped so message text cannot carry its
// own terminal sequences; the only escapes in the output are the ones
// the rule list adds.
func renderBody(raw string) string {
	return conversation.ApplyRules(stripControl(raw), ansiRules)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func (m *Model) transcriptHeight() int {
	// header(1) + blank(1) + waveform/status(1) + compose(3) + footer(1)
	reserved := 7
	if m.controller != nil && m.controller.Crisis() {
		reserved += 4 + len(conversation.Helplines)
	}
	if m.errMessage != "" {
		reserved++
	}
	return max(4, m.height-reserved)
}

// refreshTranscript rebuilds the viewport content from the controller's
// transcript and pins the view to the newest message.
func (m *Model) refreshTranscript() {
	if m.controller == nil {
		return
	}
	width := max(20, m.transcript.Width-2)

	var blocks []string
	for _, msg := range m.controller.Messages() {
		var name string
		if msg.Role == conversation.RoleUser {
			name = userNameStyle.Render("You")
		} else {
			name = personaNameStyle.Render(m.personaLabel())
		}
		ts := dimStyle.Render(msg.At.Format("15:04"))
		body := renderBody(msg.Text)
		body = lipgloss.NewStyle().Width(width).Render(body)
		blocks = append(blocks, name+" "+ts+"\n"+body)
	}
	m.transcript.Height = m.transcriptHeight()
	m.transcript.SetContent(strings.Join(blocks, "\n\n"))
	m.transcript.GotoBottom()
}

func (m *Model) personaLabel() string {
	if name := m.controller.PersonName(); name != "" {
		return name
	}
	return "Solace"
}

func (m *Model) viewChatScreen() string {
	var sections []string

	header := titleStyle.Render("SOLACE") + dimStyle.Render("  — talking with ") + personaNameStyle.Render(m.personaLabel())
	sections = append(sections, header)

	if m.controller.Crisis() {
		sections = append(sections, m.renderCrisisBanner())
	}

	sections = append(sections, m.transcript.View())
	sections = append(sections, m.renderActivityLine())
	sections = append(sections, m.compose.View())

	if m.errMessage != "" {
		sections = append(sections, errorTextStyle.Render(m.errMessage))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

// renderActivityLine shows the typing indicator while a turn is in
// flight and the live waveform while the microphone is open.
func (m *Model) renderActivityLine() string {
	switch {
	case m.controller.Sending():
		return m.typing.View() + dimStyle.Render(m.personaLabel()+" is typing…")
	case m.recording:
		return recordingDotStyle.Render("● ") + waveformStyle.Render(renderWaveform(m.frame.Bins, min(48, max(16, m.width-8))))
	default:
		return ""
	}
}

var waveGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// renderWaveform maps spectrum bins onto block glyphs, resampling to the
// target width.
func renderWaveform(bins []float64, width int) string {
	if len(bins) == 0 {
		return strings.Repeat(string(waveGlyphs[1]), width)
	}
	out := make([]rune, width)
	for i := range out {
		v := bins[i*len(bins)/width]
		idx := int(v * float64(len(waveGlyphs)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(waveGlyphs) {
			idx = len(waveGlyphs) - 1
		}
		out[i] = waveGlyphs[idx]
	}
	return string(out)
}

func (m *Model) renderCrisisBanner() string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("You are not alone. Please reach out:"))
	b.WriteString("\n")
	for _, h := range conversation.Helplines {
		fmt.Fprintf(&b, "📞 %s: %s\n", h.Name, h.Number)
	}
	b.WriteString(dimStyle.Render("esc to dismiss"))
	return crisisBannerStyle.Render(b.String())
}

func (m *Model) renderFooter() string {
	parts := []string{
		footerKeyStyle.Render("enter") + footerDescStyle.Render(" send"),
	}
	if m.recording {
		parts = append(parts, footerKeyStyle.Render("ctrl+r")+footerDescStyle.Render(" stop mic"))
	} else {
		parts = append(parts, footerKeyStyle.Render("ctrl+r")+footerDescStyle.Render(" mic"))
	}
	if m.controller.Crisis() {
		parts = append(parts, footerKeyStyle.Render("esc")+footerDescStyle.Render(" dismiss"))
	}
	parts = append(parts, footerKeyStyle.Render("ctrl+c")+footerDescStyle.Render(" quit"))
	return strings.Join(parts, "  ")
}
