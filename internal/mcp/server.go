package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/afero"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// Provider supplies the source map tools answer from. Implementations must
// be safe for concurrent use.
type Provider interface {
	// Current returns the source map of the generated C as it is now.
	Current(ctx context.Context) (*sourcemap.SourceMap, error)

	// Fs is the file system generated files are read from.
	Fs() afero.Fs
}

// Server exposes source map queries to debugger front ends and assistants
// over the Model Context Protocol.
type Server struct {
	provider Provider
	searches *searcherCache
	mcp      *server.MCPServer
}

// NewServer creates an MCP server with every cobmap tool registered.
func NewServer(provider Provider, version string) *Server {
	mcpServer := server.NewMCPServer(
		"cobmap",
		version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		provider: provider,
		searches: newSearcherCache(),
		mcp:      mcpServer,
	}

	AddLookupLineTool(mcpServer, provider)
	AddSymbolTool(mcpServer, provider)
	AddSearchTool(mcpServer, provider, s.searches)
	AddDumpTool(mcpServer, provider)

	return s
}

// MCP returns the underlying server, for in-process transports.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve runs the server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases cached search indexes.
func (s *Server) Close() error {
	return s.searches.Close()
}
