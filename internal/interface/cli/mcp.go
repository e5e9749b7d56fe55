package cli

import (
	"fmt"

	"github.com/neilberkman/fieldhand/cmd/fieldhand/mcp"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start an MCP server exposing farm advisory tools",
	Long: `Start an MCP (Model Context Protocol) server over stdio so an assistant
can read your farm status and run advisory requests with your saved session.

Sign in with "fieldhand login" first. Example client config:
  {
    "mcpServers": {
      "fieldhand": {
        "command": "fieldhand",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: withApp(runMCP),
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, a *app.App, args []string) error {
	if err := mcp.StartServer(a); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
