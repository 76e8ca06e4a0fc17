package cmd

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/granola-mcp/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the meeting tools over MCP stdio",
	Long: `Run an MCP server on stdin/stdout. Configure it in your MCP client as:

  {"command": "granola-mcp", "args": ["serve"]}

Logs go to the log directory (or stderr); stdout carries only protocol messages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s := tools.NewServer(a.svc, Version)
		a.log.Infof("serving MCP over stdio (version %s)", Version)
		if err := server.ServeStdio(s); err != nil {
			a.log.Errorf("stdio server stopped: %v", err)
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
