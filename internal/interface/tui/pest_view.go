package tui

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
)

type pestForm struct {
	input  textinput.Model
	busy   bool
	err    error
	result *advisoryapi.PestDetection
}

func newPestForm() pestForm {
	in := textinput.New()
	in.Placeholder = "~/photos/leaf.jpg"
	in.Prompt = ""
	in.CharLimit = 4096
	return pestForm{input: in}
}

func (m Model) updatePest(msg tea.KeyMsg) (Model, tea.Cmd) {
	f := &m.pest

	switch msg.String() {
	case "esc":
		return m.navigate(route.Dashboard)
	case "enter":
		if f.busy {
			return m, nil
		}
		path := expandHome(strings.TrimSpace(f.input.Value()))
		if path == "" {
			f.err = advisoryapi.Validation("Enter the path to a leaf photo")
			return m, nil
		}
		f.busy = true
		f.err = nil
		f.result = nil
		return m, detectPest(m.deps.Advisory, m.sess.Generation, path)
	}

	if f.busy {
		return m, nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return m, cmd
}

func (m Model) viewPest() string {
	f := m.pest
	var b strings.Builder

	b.WriteString("Photograph an affected leaf and enter the image path.\n\n")
	b.WriteString(focusedLabelStyle.Render("Image") + f.input.View() + "\n\n")

	switch {
	case f.busy:
		b.WriteString(m.spinner.View() + " Examining image...\n")
	case f.err != nil:
		b.WriteString(errorStyle.Render(f.err.Error()) + "\n")
	case f.result != nil:
		b.WriteString(report.Pest(f.result))
	}

	b.WriteString("\n" + helpStyle.Render("enter: detect • esc: back"))
	return b.String()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
