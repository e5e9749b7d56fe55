package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// viewCrops only ever reads the shared farm store, so it always shows the
// crops belonging to the latest soil analysis.
func (m Model) viewCrops() string {
	if m.farm.Soil == nil {
		return "No recommendations yet. Complete a soil analysis in Farm setup (press 2).\n"
	}
	if len(m.farm.Crops) == 0 {
		return fmt.Sprintf("No crops recommended for %s soil. Try adjusting your inputs in Farm setup.\n", m.farm.Soil.OverallHealth)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Recommended for %s soil (pH %s):\n\n", m.farm.Soil.OverallHealth, humanize.Ftoa(m.farm.Soil.Soil.PH.Value)))
	b.WriteString(metaStyle.Render(fmt.Sprintf("%3s  %-16s %-10s %-10s %s", "#", "Crop", "Water", "pH range", "Season")) + "\n")
	for i, c := range m.farm.Crops {
		b.WriteString(fmt.Sprintf("%3d  %-16s %-10s %-10s %s\n", i+1, c.Crop, c.WaterNeed, c.PHRange, c.Season))
	}
	return b.String()
}
