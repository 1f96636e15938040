package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// AddDumpTool registers the cobmap_dump tool with an MCP server.
func AddDumpTool(s *server.MCPServer, provider Provider) {
	tool := mcp.NewTool(
		"cobmap_dump",
		mcp.WithDescription(`Return the whole source map: line records, nested symbols, include edges
and parse diagnostics. Pass file to keep only the line records of one COBOL source.`),
		mcp.WithString("file",
			mcp.Description("Only line records of this COBOL file")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createDumpHandler(provider))
}

func createDumpHandler(provider Provider) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			// No arguments is a valid call
			argsMap = map[string]interface{}{}
		}
		file, err := parseStringArg(argsMap, "file", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		m, err := provider.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load source map: %w", err)
		}

		doc := m.Document()
		if file != "" {
			doc.Lines = m.LinesFor(file)
		}

		jsonData, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
