package tui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/advisory"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"github.com/neilberkman/fieldhand/internal/core/session"
)

type sessionChangedMsg struct {
	snap session.Snapshot
}

type sessionCheckedMsg struct {
	snap session.Snapshot
	err  error
}

type farmChangedMsg struct {
	state farmstate.State
}

type otpSentMsg struct {
	err error
}

type otpVerifiedMsg struct {
	err error
}

type loggedOutMsg struct {
	err error
}

type soilDoneMsg struct {
	region string
	season string
	err    error
}

// Fetch results carry the session generation they were started under so a
// response that outlives its session is dropped.
type weatherLoadedMsg struct {
	gen  uint64
	data *advisoryapi.WeatherAdvisory
	err  error
}

type marketLoadedMsg struct {
	gen  uint64
	data *advisoryapi.MarketPrices
	err  error
}

type pestDoneMsg struct {
	gen  uint64
	data *advisoryapi.PestDetection
	err  error
}

func checkSession(s *session.Manager) tea.Cmd {
	return func() tea.Msg {
		snap, err := s.CheckSession(context.Background())
		if err != nil {
			snap = s.Snapshot()
		}
		return sessionCheckedMsg{snap: snap, err: err}
	}
}

func sendOTP(s *session.Manager, email string) tea.Cmd {
	return func() tea.Msg {
		return otpSentMsg{err: s.SendOTP(context.Background(), email)}
	}
}

func verifyOTP(s *session.Manager, email, code string) tea.Cmd {
	return func() tea.Msg {
		return otpVerifiedMsg{err: s.VerifyOTP(context.Background(), email, code)}
	}
}

func logout(s *session.Manager) tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: s.Logout(context.Background())}
	}
}

func analyzeSoil(svc *advisory.Service, in advisory.SoilInput) tea.Cmd {
	return func() tea.Msg {
		res, err := svc.AnalyzeSoil(context.Background(), in)
		if err != nil {
			return soilDoneMsg{err: err}
		}
		return soilDoneMsg{region: res.Region, season: res.Season}
	}
}

func fetchWeather(svc *advisory.Service, gen uint64) tea.Cmd {
	return func() tea.Msg {
		w, err := svc.Weather(context.Background(), "")
		return weatherLoadedMsg{gen: gen, data: w, err: err}
	}
}

func fetchMarket(svc *advisory.Service, gen uint64) tea.Cmd {
	return func() tea.Msg {
		p, err := svc.MarketPrices(context.Background(), "", "")
		return marketLoadedMsg{gen: gen, data: p, err: err}
	}
}

func detectPest(svc *advisory.Service, gen uint64, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return pestDoneMsg{gen: gen, err: advisoryapi.Validation("cannot read %s", path)}
		}
		defer f.Close()

		d, err := svc.DetectPest(context.Background(), path, f)
		return pestDoneMsg{gen: gen, data: d, err: err}
	}
}
