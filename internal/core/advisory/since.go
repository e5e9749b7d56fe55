package advisory

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var sinceFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
}

// ParseSince understands "yesterday", "last week", "3 days ago" and the
// usual calendar formats. Calendar formats are tried first so that
// "02/01/2006" is read day-first, as dates are written in India.
func ParseSince(s string, now time.Time) (time.Time, bool) {
	for _, format := range sinceFormats {
		if t, err := time.ParseInLocation(format, s, now.Location()); err == nil {
			return t, true
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, now)
	if err == nil && result != nil {
		return result.Time, true
	}
	return time.Time{}, false
}
