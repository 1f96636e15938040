package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// AddSymbolTool registers the cobmap_symbol tool with an MCP server.
func AddSymbolTool(s *server.MCPServer, provider Provider) {
	tool := mcp.NewTool(
		"cobmap_symbol",
		mcp.WithDescription(`Resolve a COBOL variable to the C symbols that hold it, or back.

by=original (default): path is <program>.<name> or <program>.<group>.<name>, e.g. hello.WS-REC.WS-NAME
by=generated: path is <program>.<c-name>, e.g. hello.f_9

Returns the symbol with its storage type, size and nested fields.`),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Dotted symbol path")),
		mcp.WithString("by",
			mcp.Enum("original", "generated"),
			mcp.Description("Which name the path uses (default: original)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSymbolHandler(provider))
}

func createSymbolHandler(provider Provider) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		path, err := parseStringArg(argsMap, "path", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		by, err := parseStringArg(argsMap, "by", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		m, err := provider.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load source map: %w", err)
		}

		var (
			sym   *sourcemap.Symbol
			found bool
		)
		switch by {
		case "", "original":
			sym, found = m.SymbolByOriginalPath(path)
		case "generated":
			sym, found = m.SymbolByGeneratedPath(path)
		default:
			return mcp.NewToolResultError(`by must be "original" or "generated"`), nil
		}
		if !found {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", path, sourcemap.ErrNotFound)), nil
		}

		jsonData, err := json.Marshal(sym.Document())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
