// Package route decides what a front end may show for a requested path
// given the current session state.
package route

import (
	"strings"

	"github.com/neilberkman/fieldhand/internal/core/session"
)

const (
	Login         = "/login"
	Dashboard     = "/dashboard"
	FarmSetup     = "/farm-setup"
	CropAdvisory  = "/crop-advisory"
	Weather       = "/weather"
	MarketPrices  = "/market-prices"
	PestDetection = "/pest-detection"

	// Default is where signed-in users land.
	Default = Dashboard
)

// Protected lists the views that require a session, in menu order.
var Protected = []string{Dashboard, FarmSetup, CropAdvisory, Weather, MarketPrices, PestDetection}

type Action int

const (
	// Loading means nothing may mount yet.
	Loading Action = iota
	Render
	Redirect
)

func (a Action) String() string {
	switch a {
	case Loading:
		return "loading"
	case Render:
		return "render"
	default:
		return "redirect"
	}
}

// Decision is what to do with a request. Path is the view to render or
// the redirect target; it is empty while loading.
type Decision struct {
	Action Action
	Path   string
}

// Resolve is a pure function of the session state and requested path.
func Resolve(state session.State, path string) Decision {
	path = Normalize(path)

	switch state {
	case session.StateCheckingSession:
		return Decision{Action: Loading}

	case session.StateAuthenticated:
		if !IsProtected(path) {
			return Decision{Action: Redirect, Path: Default}
		}
		return Decision{Action: Render, Path: path}

	default:
		// Signed out or mid-login: only the login flow exists.
		if path != Login {
			return Decision{Action: Redirect, Path: Login}
		}
		return Decision{Action: Render, Path: Login}
	}
}

// Target follows a redirect so callers that do not care about the
// distinction get the path that will actually be shown.
func Target(state session.State, path string) Decision {
	d := Resolve(state, path)
	if d.Action == Redirect {
		return Resolve(state, d.Path)
	}
	return d
}

// IsProtected reports whether path is one of the Protected views.
func IsProtected(path string) bool {
	for _, p := range Protected {
		if p == path {
			return true
		}
	}
	return false
}

// Normalize lowercases path, strips query and trailing slashes and adds a
// leading slash.
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(strings.TrimSpace(path))
	path = strings.TrimRight(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
