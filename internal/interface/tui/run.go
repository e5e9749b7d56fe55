package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"github.com/neilberkman/fieldhand/internal/core/session"
)

// Run starts the dashboard and blocks until the user quits. Session and
// farm changes made anywhere in the process are forwarded to the program,
// so every view redraws from the same shared state.
func Run(deps Deps, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(New(deps), opts...)

	unsubSession := deps.Session.Subscribe(func(s session.Snapshot) {
		p.Send(sessionChangedMsg{snap: s})
	})
	defer unsubSession()

	unsubFarm := deps.Farm.Subscribe(func(s farmstate.State) {
		p.Send(farmChangedMsg{state: s})
	})
	defer unsubFarm()

	_, err := p.Run()
	return err
}
