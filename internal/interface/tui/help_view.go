package tui

func (m Model) viewHelp() string {
	help := `
Fieldhand - Help
════════════════

NAVIGATION
──────────
  1            Dashboard
  2            Farm setup (soil analysis)
  3            Crop advisory
  4            Weather
  5            Market prices
  6            Pest detection
  esc          Back to dashboard
  L            Sign out
  ?            Show this help
  q            Quit

SIGN IN
───────
  Enter        Send code / verify code
  esc          Change email
  ctrl+c       Quit

FARM SETUP
──────────
  tab/↓        Next field
  shift+tab/↑  Previous field
  Enter        Analyze soil
  esc          Back to dashboard

WEATHER / MARKET
────────────────
  r            Retry or refresh

Press any key to return
`

	return helpStyle.Render(help)
}
