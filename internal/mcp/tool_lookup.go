package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/cobmap/internal/cframes"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

const (
	DirectionCobol = "cobol"
	DirectionC     = "c"
)

// LookupLineResponse is the JSON response of cobmap_lookup_line.
type LookupLineResponse struct {
	Direction string          `json:"direction"`
	File      string          `json:"file"`
	Line      int             `json:"line"`
	Found     bool            `json:"found"`
	Location  *sourcemap.Line `json:"location,omitempty"`
	Function  *FunctionInfo   `json:"function,omitempty"`
}

// FunctionInfo names the C function a generated line belongs to.
type FunctionInfo struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// AddLookupLineTool registers the cobmap_lookup_line tool with an MCP server.
func AddLookupLineTool(s *server.MCPServer, provider Provider) {
	tool := mcp.NewTool(
		"cobmap_lookup_line",
		mcp.WithDescription(`Translate a breakpoint or stack location between COBOL and generated C.

direction=cobol: file/line is a COBOL source location; returns the generated C location.
direction=c: file/line is a generated C location; returns the COBOL source location.

The response also names the C function containing the generated line, for labelling frames.
Relative paths are resolved against the project root.`),
		mcp.WithString("direction",
			mcp.Required(),
			mcp.Enum(DirectionCobol, DirectionC),
			mcp.Description("Which side file/line refers to")),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("COBOL or generated C file path")),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createLookupLineHandler(provider))
}

func createLookupLineHandler(provider Provider) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		direction, err := parseStringArg(argsMap, "direction", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		file, err := parseStringArg(argsMap, "file", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		line, err := parseLineArg(argsMap, "line")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		m, err := provider.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load source map: %w", err)
		}

		response := &LookupLineResponse{Direction: direction, File: file, Line: line}

		var (
			loc   sourcemap.Line
			found bool
		)
		switch direction {
		case DirectionCobol:
			loc, found = m.GeneratedLocation(file, line)
		case DirectionC:
			loc, found = m.OriginalLocation(file, line)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("direction must be %q or %q", DirectionCobol, DirectionC)), nil
		}

		if found {
			response.Found = true
			response.Location = &loc
			response.Function = functionAt(ctx, provider, loc.GeneratedFile, loc.GeneratedLine)
		}

		jsonData, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

// functionAt names the C function around a generated line. Parse failures
// only drop the function from the response.
func functionAt(ctx context.Context, provider Provider, file string, line int) *FunctionInfo {
	ix, err := cframes.ParseFile(ctx, provider.Fs(), file)
	if err != nil {
		log.Printf("Warning: failed to index functions of %s: %v", file, err)
		return nil
	}
	fn, ok := ix.FunctionAt(line)
	if !ok {
		return nil
	}
	return &FunctionInfo{Name: fn.Name, StartLine: fn.StartLine, EndLine: fn.EndLine}
}
