package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/kb/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client query and move board issues natively.
Configure with:

  {
    "mcpServers": {
      "kb": { "command": "kb", "args": ["mcp"] }
    }
  }

Available tools: kb_list_issues, kb_get_issue, kb_board, kb_move_issue,
kb_undo_move. Mutating tools act as the configured role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore(cmd.Context())
		if err != nil {
			return err
		}

		srv := mcp.NewServer(s, principalFromConfig())
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
