package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/advisory"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/neilberkman/fieldhand/internal/core/session"
)

// Deps are the shared, explicitly owned collaborators every view reads from.
type Deps struct {
	Session        *session.Manager
	Farm           *farmstate.Store
	Advisory       *advisory.Service
	ReportTemplate string
}

// panel is a fetched result with its own loading and error state so a
// failure on one view leaves the others usable.
type panel[T any] struct {
	data    *T
	err     error
	loading bool
}

type Model struct {
	deps    Deps
	path    string
	width   int
	height  int
	spinner spinner.Model
	vp      viewport.Model
	help    bool

	// Local copies, refreshed by the stores' subscriptions.
	sess session.Snapshot
	farm farmstate.State

	login   loginForm
	soil    soilForm
	pest    pestForm
	weather panel[advisoryapi.WeatherAdvisory]
	market  panel[advisoryapi.MarketPrices]
}

func New(deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		deps:    deps,
		path:    route.Default,
		spinner: sp,
		vp:      viewport.New(0, 0),
		sess:    deps.Session.Snapshot(),
		farm:    deps.Farm.State(),
		login:   newLoginForm(),
		soil:    newSoilForm(),
		pest:    newPestForm(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, checkSession(m.deps.Session))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m, cmd = m.update(msg)
	m, follow := m.settle()
	return m.layout(), tea.Batch(cmd, follow)
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionChangedMsg:
		return m.applySession(msg.snap), nil

	case sessionCheckedMsg:
		return m.applySession(msg.snap), nil

	case farmChangedMsg:
		m.farm = msg.state
		return m, nil

	case otpSentMsg:
		m.login.busy = false
		m.login.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m = m.applySession(m.deps.Session.Snapshot())
		m.login.email.SetValue(m.sess.PendingEmail)
		cmd := m.login.focusCode()
		return m, cmd

	case otpVerifiedMsg:
		m.login.busy = false
		m.login.err = msg.err
		return m.applySession(m.deps.Session.Snapshot()), nil

	case loggedOutMsg:
		if msg.err != nil {
			m.login.err = msg.err
		}
		return m, nil

	case soilDoneMsg:
		m.soil.busy = false
		m.soil.err = msg.err
		if msg.err == nil {
			m.soil.region = msg.region
			m.soil.season = msg.season
		}
		return m, nil

	case weatherLoadedMsg:
		if msg.gen != m.sess.Generation || !m.sess.Authenticated() {
			return m, nil
		}
		m.weather = panel[advisoryapi.WeatherAdvisory]{data: msg.data, err: msg.err}
		return m, nil

	case marketLoadedMsg:
		if msg.gen != m.sess.Generation || !m.sess.Authenticated() {
			return m, nil
		}
		m.market = panel[advisoryapi.MarketPrices]{data: msg.data, err: msg.err}
		return m, nil

	case pestDoneMsg:
		if msg.gen != m.sess.Generation {
			return m, nil
		}
		m.pest.busy = false
		m.pest.err = msg.err
		m.pest.result = msg.data
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.help {
		m.help = false
		return m, nil
	}

	d := route.Target(m.sess.State, m.path)
	if d.Action != route.Render {
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	}

	switch d.Path {
	case route.Login:
		return m.updateLogin(msg)
	case route.FarmSetup:
		return m.updateSoil(msg)
	case route.PestDetection:
		return m.updatePest(msg)
	}

	// Views without text input share the navigation keys.
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.help = true
		return m, nil
	case "L":
		return m.logout()
	case "r":
		return m.refresh(d.Path)
	case "esc":
		return m.navigate(route.Dashboard)
	case "up", "k", "down", "j", "pgup", "pgdown":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	if p, ok := menuKey(msg.String()); ok {
		return m.navigate(p)
	}
	return m, nil
}

// menuKey maps 1..n to the protected views in menu order.
func menuKey(key string) (string, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return "", false
	}
	i := int(key[0] - '1')
	if i >= len(route.Protected) {
		return "", false
	}
	return route.Protected[i], true
}

func (m Model) navigate(path string) (Model, tea.Cmd) {
	m.path = path
	m.help = false
	m.vp.GotoTop()

	var cmd tea.Cmd
	switch path {
	case route.FarmSetup:
		cmd = m.soil.focus()
	case route.PestDetection:
		cmd = m.pest.input.Focus()
	}
	return m, cmd
}

func (m Model) refresh(path string) (Model, tea.Cmd) {
	switch path {
	case route.Weather:
		m.weather.loading = true
		m.weather.err = nil
		return m, fetchWeather(m.deps.Advisory, m.sess.Generation)
	case route.MarketPrices:
		m.market.loading = true
		m.market.err = nil
		return m, fetchMarket(m.deps.Advisory, m.sess.Generation)
	}
	return m, nil
}

func (m Model) logout() (Model, tea.Cmd) {
	// Signing out is instant locally; the manager finishes in the background.
	m = m.applySession(session.Snapshot{State: session.StateUnauthenticated, Generation: m.sess.Generation})
	return m, logout(m.deps.Session)
}

func (m Model) applySession(snap session.Snapshot) Model {
	prev := m.sess
	wasAuthed := prev.Authenticated()
	m.sess = snap
	if wasAuthed && !snap.Authenticated() {
		m.weather = panel[advisoryapi.WeatherAdvisory]{}
		m.market = panel[advisoryapi.MarketPrices]{}
		m.pest = newPestForm()
		m.soil = newSoilForm()
		m.login = newLoginForm()
		if snap.Err != nil {
			m.login.err = snap.Err
		}
	}
	if snap.State == session.StateAwaitingOTP && prev.State != session.StateAwaitingOTP {
		m.login.step = stepCode
		m.login.email.SetValue(snap.PendingEmail)
	}
	return m
}

// settle follows route redirects and starts the fetches a freshly shown
// view needs.
func (m Model) settle() (Model, tea.Cmd) {
	d := route.Target(m.sess.State, m.path)
	if d.Action == route.Loading {
		return m, nil
	}
	if m.path != d.Path {
		// Remember protected destinations across the login detour.
		if d.Path != route.Login {
			m.path = d.Path
		} else if !route.IsProtected(m.path) {
			m.path = route.Login
		}
	}

	switch d.Path {
	case route.Weather:
		if m.weather.data == nil && m.weather.err == nil && !m.weather.loading {
			m.weather.loading = true
			return m, fetchWeather(m.deps.Advisory, m.sess.Generation)
		}
	case route.MarketPrices:
		if m.market.data == nil && m.market.err == nil && !m.market.loading {
			m.market.loading = true
			return m, fetchMarket(m.deps.Advisory, m.sess.Generation)
		}
	case route.Login:
		cmd := m.login.focused()
		return m, cmd
	}
	return m, nil
}

// chromeHeight is the header and footer around a protected view's body.
const chromeHeight = 6

// layout sizes the body viewport and refreshes its content.
func (m Model) layout() Model {
	if m.height == 0 {
		return m
	}
	d := route.Target(m.sess.State, m.path)
	if d.Action != route.Render || d.Path == route.Login {
		return m
	}
	m.vp.Width = m.width
	m.vp.Height = max(m.height-chromeHeight, 3)
	m.vp.SetContent(m.body(d.Path))
	return m
}

func (m Model) View() string {
	if m.help {
		return m.viewHelp()
	}

	d := route.Target(m.sess.State, m.path)
	if d.Action == route.Loading {
		return "\n  " + m.spinner.View() + " Checking your session...\n"
	}
	if d.Path == route.Login {
		return m.viewLogin()
	}

	if m.height > 0 {
		return m.frame(d.Path, m.vp.View())
	}
	return m.frame(d.Path, m.body(d.Path))
}

func (m Model) body(path string) string {
	switch path {
	case route.Dashboard:
		return m.viewDashboard()
	case route.FarmSetup:
		return m.viewSoil()
	case route.CropAdvisory:
		return m.viewCrops()
	case route.Weather:
		return m.viewWeather()
	case route.MarketPrices:
		return m.viewMarket()
	case route.PestDetection:
		return m.viewPest()
	}
	return ""
}
