package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/solaceapp/solace/internal/ingest"
)

// viewImportScreen renders the phase checklist and the progress bar.
func (m *Model) viewImportScreen() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SOLACE"))
	b.WriteString(dimStyle.Render("  — bringing their words home"))
	b.WriteString("\n\n")

	if m.snapshot.File != "" {
		fmt.Fprintf(&b, "%s %s\n\n", dimStyle.Render("Importing"), filepath.Base(m.snapshot.File))
	}

	switch m.snapshot.Status {
	case ingest.StatusRunning, ingest.StatusSucceeded:
		for i, label := range ingest.Phases {
			switch {
			case i < m.snapshot.Phase || m.snapshot.Status == ingest.StatusSucceeded:
				fmt.Fprintf(&b, "  %s %s\n", phaseDoneStyle.Render("✓"), label)
			case i == m.snapshot.Phase:
				fmt.Fprintf(&b, "  %s %s\n", phaseActiveStyle.Render(m.typing.View()), phaseActiveStyle.Render(label))
			default:
				fmt.Fprintf(&b, "    %s\n", dimStyle.Render(label))
			}
		}
		b.WriteString("\n  ")
		b.WriteString(m.bar.ViewAs(float64(m.snapshot.Progress) / 100))
		fmt.Fprintf(&b, " %d%%\n", m.snapshot.Progress)

	case ingest.StatusFailed:
		b.WriteString(errorStyle.Render("  Import failed") + "\n")
		b.WriteString(errorTextStyle.Render("  "+m.snapshot.Err) + "\n\n")
		b.WriteString(footerKeyStyle.Render("  r") + footerDescStyle.Render(" retry") + "  ")
		b.WriteString(footerKeyStyle.Render("q") + footerDescStyle.Render(" quit") + "\n")

	default:
		if m.snapshot.Err != "" {
			b.WriteString(errorTextStyle.Render("  "+m.snapshot.Err) + "\n")
		} else {
			b.WriteString(dimStyle.Render("  Starting…") + "\n")
		}
	}

	return b.String()
}
