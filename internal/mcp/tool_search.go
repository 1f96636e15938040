package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/cobmap/internal/search"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// SearchResponse is the JSON response of cobmap_search.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []*SearchResult `json:"results"`
	TookMs  int             `json:"took_ms"`
}

// SearchResult is one matching symbol.
type SearchResult struct {
	Path          string               `json:"path"`
	GeneratedName string               `json:"generated_name"`
	Unit          string               `json:"unit"`
	Kind          sourcemap.SymbolKind `json:"kind"`
	Score         float64              `json:"score"`
}

// indexedMap is the search index of one source map. refs counts requests
// still searching it; a retired index is closed when the last one releases.
type indexedMap struct {
	m        *sourcemap.SourceMap
	searcher search.SymbolSearcher
	refs     int
	retired  bool
}

// searcherCache keeps the search index of the most recent source map.
type searcherCache struct {
	mu      sync.Mutex
	current *indexedMap
}

func newSearcherCache() *searcherCache {
	return &searcherCache{}
}

// acquire returns the index for m, building it when m is not the cached map.
// Callers must release the result once done searching.
func (c *searcherCache) acquire(ctx context.Context, m *sourcemap.SourceMap) (*indexedMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.m == m {
		c.current.refs++
		return c.current, nil
	}

	searcher, err := search.NewSymbolSearcher(ctx, m)
	if err != nil {
		return nil, err
	}
	if c.current != nil {
		c.retire(c.current)
	}
	c.current = &indexedMap{m: m, searcher: searcher, refs: 1}
	return c.current, nil
}

func (c *searcherCache) release(e *indexedMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.retired && e.refs == 0 {
		e.searcher.Close()
	}
}

// retire closes e now if idle, otherwise on its last release. Caller holds mu.
func (c *searcherCache) retire(e *indexedMap) error {
	e.retired = true
	if e.refs > 0 {
		return nil
	}
	return e.searcher.Close()
}

func (c *searcherCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	err := c.retire(c.current)
	c.current = nil
	return err
}

// AddSearchTool registers the cobmap_search tool with an MCP server.
func AddSearchTool(s *server.MCPServer, provider Provider, searches *searcherCache) {
	tool := mcp.NewTool(
		"cobmap_search",
		mcp.WithDescription(`Find COBOL variables by name.

Matches words of hyphenated names (CUSTOMER finds WS-CUSTOMER-NAME), name prefixes,
near misses and exact C names (f_12). Queries containing ':' or '+' use bleve query
syntax over original_name, generated_name, unit, kind and path.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name, prefix or query string")),
		mcp.WithString("unit",
			mcp.Description("Restrict to one program")),
		mcp.WithString("kind",
			mcp.Enum(string(sourcemap.KindStorage), string(sourcemap.KindField)),
			mcp.Description("Restrict to storage or fields")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100, default: 15)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchHandler(provider, searches))
}

func createSearchHandler(provider Provider, searches *searcherCache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		query, err := parseStringArg(argsMap, "query", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		unit, _ := parseStringArg(argsMap, "unit", false)
		kind, _ := parseStringArg(argsMap, "kind", false)
		limit := parseClampedInt(argsMap, "limit", 15, 1, 100)

		m, err := provider.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load source map: %w", err)
		}
		indexed, err := searches.acquire(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("failed to index symbols: %w", err)
		}
		defer searches.release(indexed)

		results, err := indexed.searcher.Search(ctx, query, &search.Options{
			Unit:  unit,
			Kind:  sourcemap.SymbolKind(kind),
			Limit: limit,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		response := &SearchResponse{Query: query, Results: make([]*SearchResult, 0, len(results))}
		for _, r := range results {
			response.Results = append(response.Results, &SearchResult{
				Path:          r.Symbol.Path().String(),
				GeneratedName: r.Symbol.GeneratedName,
				Unit:          r.Symbol.Unit,
				Kind:          r.Symbol.Kind,
				Score:         r.Score,
			})
		}
		response.TookMs = int(time.Since(startTime).Milliseconds())

		jsonData, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
