package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cbind/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for declaration lookups",
	Long: `Start the Model Context Protocol (MCP) server that lets LLM-powered coding
assistants extract C declarations from the project.

The MCP server:
- Extracts files or in-memory sources with the project configuration
- Provides cbind_extract, cbind_lookup and cbind_search tools
- Communicates via stdio (standard MCP transport)

Example:
  cbind mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	root, err := resolveProjectDir()
	if err != nil {
		return err
	}
	p, err := loadProject(root, verbose)
	if err != nil {
		return err
	}

	builtins, err := p.builtins(ctx, nil)
	if err != nil {
		return err
	}
	sess, err := p.newSession(builtins)
	if err != nil {
		return err
	}
	defer sess.Close()

	// stdout carries the protocol; everything else goes to stderr.
	fmt.Fprintf(os.Stderr, "cbind MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project: %s\n", root)
	fmt.Fprintf(os.Stderr, "Builtins: %d\n\n", builtins.Len())

	server, err := mcp.NewMCPServer(&mcp.MCPServerConfig{RootDir: root, Version: Version}, sess)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
