package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/fieldhand/internal/core/route"
)

var viewTitles = map[string]string{
	route.Dashboard:     "Dashboard",
	route.FarmSetup:     "Farm setup",
	route.CropAdvisory:  "Crop advisory",
	route.Weather:       "Weather",
	route.MarketPrices:  "Market",
	route.PestDetection: "Pests",
}

// frame wraps a protected view with the header tabs and footer.
func (m Model) frame(path, body string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fieldhand"))
	b.WriteString(metaStyle.Render("  " + m.sess.Email))
	b.WriteString("\n")

	for i, p := range route.Protected {
		label := fmt.Sprintf("%d %s", i+1, viewTitles[p])
		if p == path {
			b.WriteString(activeTabStyle.Render(label))
		} else {
			b.WriteString(tabStyle.Render(label))
		}
	}
	b.WriteString("\n\n")

	b.WriteString(body)
	b.WriteString("\n")

	if m.sess.Err != nil {
		b.WriteString("\n" + errorStyle.Render(m.sess.Err.Error()) + "\n")
	}
	if path != route.FarmSetup && path != route.PestDetection {
		b.WriteString("\n" + helpStyle.Render("1-6: switch view • r: refresh • L: sign out • ?: help • q: quit"))
	}
	return b.String()
}

func (m Model) viewDashboard() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Signed in as %s.\n\n", m.sess.Email))

	if m.farm.Soil == nil {
		b.WriteString("No soil analysis yet. Press 2 to enter your soil test results.\n")
	} else {
		soil := m.farm.Soil
		b.WriteString(fmt.Sprintf("Soil health   %s (pH %s, %s)\n",
			soil.OverallHealth, humanize.Ftoa(soil.Soil.PH.Value), soil.Soil.PH.Status))
		if soil.Fertilizer != nil {
			b.WriteString(fmt.Sprintf("Fertilizer    %s\n", soil.Fertilizer.FertilizerType))
		}
		switch n := len(m.farm.Crops); n {
		case 0:
			b.WriteString("Crops         none recommended\n")
		default:
			b.WriteString(fmt.Sprintf("Crops         %s", m.farm.Crops[0].Crop))
			if n > 1 {
				b.WriteString(fmt.Sprintf(" and %d more", n-1))
			}
			b.WriteString("\n")
		}
		b.WriteString(metaStyle.Render("Analyzed "+humanize.RelTime(m.farm.RecordedAt, time.Now(), "ago", "from now")) + "\n")
	}

	if w := m.weather.data; w != nil && len(w.Alerts) > 0 {
		b.WriteString("\n" + alertStyle.Render(fmt.Sprintf("%d weather alert(s) for %s", len(w.Alerts), w.Location)) + "\n")
	}
	return b.String()
}
