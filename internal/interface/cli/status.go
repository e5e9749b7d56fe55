package cli

import (
	"fmt"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether you are signed in",
	RunE:  withApp(runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, a *app.App, args []string) error {
	out := cmd.OutOrStdout()

	snap, _, err := a.Gate(cmd.Context(), route.Default)

	fmt.Fprintf(out, "Server: %s\n", a.Config.APIURL)
	fmt.Fprintf(out, "Store:  %s\n", a.Config.Store)
	switch {
	case snap.Authenticated():
		fmt.Fprintf(out, "Signed in as %s\n", snap.Email)
	case advisoryapi.IsTransient(err):
		fmt.Fprintf(out, "Not signed in: %v\n", err)
		fmt.Fprintln(out, "Your saved session was kept; try again when the server is reachable.")
	case err != nil:
		fmt.Fprintf(out, "Not signed in: %v\n", err)
	default:
		fmt.Fprintln(out, "Not signed in")
	}
	return nil
}
