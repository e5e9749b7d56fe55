package tui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/advisory"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
)

const (
	fieldPH = iota
	fieldNitrogen
	fieldPhosphorus
	fieldPotassium
	fieldMoisture
	fieldRegion
	fieldSeason
	fieldCount
)

var soilLabels = [fieldCount]string{"pH", "Nitrogen", "Phosphorus", "Potassium", "Moisture %", "Region", "Season"}

type soilForm struct {
	inputs [fieldCount]textinput.Model
	active int
	busy   bool
	err    error

	// Region and season of the last submission, for the report header.
	region string
	season string
}

func newSoilForm() soilForm {
	var f soilForm
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 32
		f.inputs[i] = in
	}
	f.inputs[fieldPH].Placeholder = "6.5"
	f.inputs[fieldNitrogen].Placeholder = "kg/ha"
	f.inputs[fieldPhosphorus].Placeholder = "kg/ha"
	f.inputs[fieldPotassium].Placeholder = "kg/ha"
	f.inputs[fieldMoisture].Placeholder = "0-100"
	f.inputs[fieldRegion].Placeholder = "default"
	f.inputs[fieldSeason].Placeholder = strings.Join(advisory.Seasons, ", ")
	return f
}

func (f *soilForm) focus() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	return f.inputs[f.active].Focus()
}

func (f *soilForm) move(delta int) tea.Cmd {
	f.active = (f.active + delta + fieldCount) % fieldCount
	return f.focus()
}

// input parses the form. Numbers are required; region and season fall
// back to the configured defaults when blank.
func (f *soilForm) input() (advisory.SoilInput, error) {
	var nums [fieldMoisture + 1]float64
	for i := fieldPH; i <= fieldMoisture; i++ {
		raw := strings.TrimSpace(f.inputs[i].Value())
		if raw == "" {
			return advisory.SoilInput{}, advisoryapi.Validation("%s is required", soilLabels[i])
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return advisory.SoilInput{}, advisoryapi.Validation("%s must be a number", soilLabels[i])
		}
		nums[i] = v
	}

	in := advisory.SoilInput{
		PH:         nums[fieldPH],
		Nitrogen:   nums[fieldNitrogen],
		Phosphorus: nums[fieldPhosphorus],
		Potassium:  nums[fieldPotassium],
		Moisture:   nums[fieldMoisture],
		Region:     strings.TrimSpace(f.inputs[fieldRegion].Value()),
		Season:     strings.ToLower(strings.TrimSpace(f.inputs[fieldSeason].Value())),
	}
	return in, in.Validate()
}

func (m Model) updateSoil(msg tea.KeyMsg) (Model, tea.Cmd) {
	f := &m.soil

	switch msg.String() {
	case "esc":
		return m.navigate(route.Dashboard)
	case "tab", "down":
		cmd := f.move(1)
		return m, cmd
	case "shift+tab", "up":
		cmd := f.move(-1)
		return m, cmd
	case "enter":
		if f.busy {
			return m, nil
		}
		in, err := f.input()
		if err != nil {
			f.err = err
			return m, nil
		}
		f.busy = true
		f.err = nil
		return m, analyzeSoil(m.deps.Advisory, in)
	}

	if f.busy {
		return m, nil
	}
	var cmd tea.Cmd
	f.inputs[f.active], cmd = f.inputs[f.active].Update(msg)
	return m, cmd
}

func (m Model) viewSoil() string {
	f := m.soil
	var b strings.Builder

	b.WriteString("Enter your latest soil test results.\n\n")
	for i, in := range f.inputs {
		label := labelStyle
		if i == f.active {
			label = focusedLabelStyle
		}
		b.WriteString(label.Render(soilLabels[i]) + in.View() + "\n")
	}

	b.WriteString("\n")
	switch {
	case f.busy:
		b.WriteString(m.spinner.View() + " Analyzing soil...\n")
	case f.err != nil:
		b.WriteString(errorStyle.Render(f.err.Error()) + "\n")
	case m.farm.Soil != nil:
		b.WriteString(okStyle.Render("Saved. Your crop advisory is up to date (press esc, then 3).") + "\n\n")
		b.WriteString(report.RenderSoil(report.Soil{
			Analysis:   m.farm.Soil,
			Crops:      m.farm.Crops,
			Region:     f.region,
			Season:     f.season,
			AnalyzedAt: m.farm.RecordedAt,
		}, m.deps.ReportTemplate, time.Now()))
	}

	b.WriteString("\n" + helpStyle.Render("tab/↓: next field • shift+tab/↑: previous • enter: analyze • esc: back"))
	return b.String()
}
