package tui

import (
	"strings"

	"github.com/neilberkman/fieldhand/internal/core/report"
)

func (m Model) viewWeather() string {
	return viewPanel(m, m.weather.loading, m.weather.err, "Fetching weather...", func() string {
		return report.Weather(m.weather.data)
	}, m.weather.data != nil)
}

func (m Model) viewMarket() string {
	return viewPanel(m, m.market.loading, m.market.err, "Fetching market prices...", func() string {
		return report.Market(m.market.data)
	}, m.market.data != nil)
}

// viewPanel renders the loading, error and loaded states shared by the
// fetched views. A failed fetch offers a retry without leaving the view.
func viewPanel(m Model, loading bool, err error, waiting string, render func() string, loaded bool) string {
	var b strings.Builder
	switch {
	case loading:
		b.WriteString(m.spinner.View() + " " + waiting + "\n")
	case err != nil:
		b.WriteString(errorStyle.Render(err.Error()) + "\n\n")
		b.WriteString(helpStyle.Render("Press r to retry.") + "\n")
	case loaded:
		b.WriteString(render())
	}
	return b.String()
}
