package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for debugger and assistant integrations",
	Long: `Start the Model Context Protocol (MCP) server so debugger front ends and
LLM coding assistants can query the source map.

The MCP server:
- Rebuilds the source map lazily when cobc regenerates C
- Provides cobmap_lookup_line, cobmap_symbol, cobmap_search and cobmap_dump
- Communicates via stdio (standard MCP transport)

Example:
  cobmap mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := loadProject()
	if err != nil {
		return err
	}
	defer p.Close()

	// stdout carries the protocol
	fmt.Fprintf(os.Stderr, "cobmap MCP Server %s\n", Version)
	fmt.Fprintf(os.Stderr, "Project:     %s\n", p.Root())
	fmt.Fprintf(os.Stderr, "Generated C: %s\n\n", p.GeneratedDir())

	server := mcp.NewServer(p, Version)
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
