package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/neilberkman/fieldhand/internal/core/session"
	"github.com/spf13/cobra"
)

const maxCodeAttempts = 3

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with an emailed one-time code",
	Long: `Sign in to the advisory service.

A 6-digit code is emailed to you; enter it when prompted. The session is
saved so later commands do not ask again.

Examples:
  fieldhand login
  fieldhand login --email farmer@example.com`,
	RunE: withApp(runLogin),
}

var loginEmail string

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address (prompted if omitted)")
}

func runLogin(cmd *cobra.Command, a *app.App, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	snap, d, err := a.Gate(ctx, route.Login)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not check saved session: %v\n", err)
	}
	if d.Action == route.Redirect && snap.Authenticated() {
		fmt.Fprintf(out, "Already signed in as %s\n", snap.Email)
		return nil
	}

	email := loginEmail
	if email == "" {
		if email, err = prompt(in, out, "Email: "); err != nil {
			return err
		}
	}

	err = spin(cmd.ErrOrStderr(), "Sending code...", func() error {
		return a.Session.SendOTP(ctx, email)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "We sent a %d-digit code to %s.\n", session.CodeLength, a.Session.Snapshot().PendingEmail)

	for attempt := 1; ; attempt++ {
		line, err := prompt(in, out, "Code: ")
		if err != nil {
			return err
		}
		code := session.SanitizeCode(line)

		err = spin(cmd.ErrOrStderr(), "Verifying...", func() error {
			return a.Session.VerifyOTP(ctx, "", code)
		})
		if err == nil {
			break
		}
		if errors.Is(err, session.ErrSuperseded) || advisoryapi.KindOf(err) == advisoryapi.KindInternal {
			return err
		}
		fmt.Fprintln(out, err)
		if attempt == maxCodeAttempts {
			return fmt.Errorf("giving up after %d attempts", maxCodeAttempts)
		}
	}

	fmt.Fprintf(out, "Signed in as %s\n", a.Session.Snapshot().Email)
	return nil
}

// prompt reads one trimmed line. EOF with no input is an error.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", errors.New("no input")
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
