package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/session"
)

type loginStep int

const (
	stepEmail loginStep = iota
	stepCode
)

type loginForm struct {
	step  loginStep
	email textinput.Model
	code  textinput.Model
	busy  bool
	err   error
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Focus()

	code := textinput.New()
	code.Placeholder = "123456"
	code.Prompt = ""
	code.CharLimit = session.CodeLength

	return loginForm{email: email, code: code}
}

func (f *loginForm) focusCode() tea.Cmd {
	f.step = stepCode
	f.email.Blur()
	return f.code.Focus()
}

func (f *loginForm) focusEmail() tea.Cmd {
	f.step = stepEmail
	f.code.Blur()
	return f.email.Focus()
}

// focused makes sure the input for the current step has the cursor.
func (f *loginForm) focused() tea.Cmd {
	if f.step == stepCode {
		if f.code.Focused() {
			return nil
		}
		return f.focusCode()
	}
	if f.email.Focused() {
		return nil
	}
	return f.focusEmail()
}

func (m Model) updateLogin(msg tea.KeyMsg) (Model, tea.Cmd) {
	f := &m.login

	switch msg.String() {
	case "esc":
		if f.step == stepCode && !f.busy {
			f.err = nil
			cmd := f.focusEmail()
			return m, cmd
		}
		return m, nil

	case "enter":
		if f.busy {
			return m, nil
		}
		if f.step == stepEmail {
			email := strings.TrimSpace(f.email.Value())
			if err := session.ValidateEmail(email); err != nil {
				f.err = err
				return m, nil
			}
			f.busy = true
			f.err = nil
			return m, sendOTP(m.deps.Session, email)
		}

		code := session.SanitizeCode(f.code.Value())
		if !session.ValidCode(code) {
			f.err = advisoryapi.Validation("Enter the %d-digit code from your email", session.CodeLength)
			return m, nil
		}
		f.busy = true
		f.err = nil
		return m, verifyOTP(m.deps.Session, m.sess.PendingEmail, code)
	}

	if f.busy {
		return m, nil
	}

	var cmd tea.Cmd
	if f.step == stepEmail {
		f.email, cmd = f.email.Update(msg)
		return m, cmd
	}
	f.code, cmd = f.code.Update(msg)
	f.code.SetValue(session.SanitizeCode(f.code.Value()))
	return m, cmd
}

func (m Model) viewLogin() string {
	f := m.login
	var b strings.Builder

	b.WriteString("\n  " + titleStyle.Render("Fieldhand") + metaStyle.Render("  farm advisory") + "\n\n")

	if f.step == stepEmail {
		b.WriteString("  Sign in with a one-time code sent to your email.\n\n")
		b.WriteString("  " + focusedLabelStyle.Render("Email") + f.email.View() + "\n")
	} else {
		b.WriteString(fmt.Sprintf("  We sent a %d-digit code to %s.\n\n", session.CodeLength, m.sess.PendingEmail))
		b.WriteString("  " + labelStyle.Render("Email") + m.sess.PendingEmail + "\n")
		b.WriteString("  " + focusedLabelStyle.Render("Code") + f.code.View() + "\n")
	}

	b.WriteString("\n")
	switch {
	case f.busy && f.step == stepEmail:
		b.WriteString("  " + m.spinner.View() + " Sending code...\n")
	case f.busy:
		b.WriteString("  " + m.spinner.View() + " Verifying...\n")
	case f.err != nil:
		b.WriteString("  " + errorStyle.Render(f.err.Error()) + "\n")
	case m.sess.Err != nil:
		b.WriteString("  " + errorStyle.Render(m.sess.Err.Error()) + "\n")
	}

	b.WriteString("\n")
	if f.step == stepEmail {
		b.WriteString(helpStyle.Render("  enter: send code • ctrl+c: quit"))
	} else {
		b.WriteString(helpStyle.Render("  enter: verify • esc: change email • ctrl+c: quit"))
	}
	b.WriteString("\n")
	return b.String()
}
