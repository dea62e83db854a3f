// Package mcp exposes extraction over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/cbind/internal/search"
	"github.com/mvp-joe/cbind/internal/session"
)

// MCPServerConfig configures the server.
type MCPServerConfig struct {
	// RootDir is where relative paths in tool arguments are resolved.
	RootDir string

	Version string
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	config  *MCPServerConfig
	session *session.Session
	index   *search.Index
	mcp     *server.MCPServer
}

// NewMCPServer creates a server that extracts with sess. The caller keeps
// ownership of sess.
func NewMCPServer(config *MCPServerConfig, sess *session.Session) (*MCPServer, error) {
	if config == nil {
		config = &MCPServerConfig{}
	}
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		"cbind-mcp",
		config.Version,
		server.WithToolCapabilities(true),
	)

	idx, err := search.NewIndex()
	if err != nil {
		return nil, err
	}

	AddExtractTool(mcpServer, sess, config.RootDir)
	AddLookupTool(mcpServer, sess, config.RootDir)
	AddSearchTool(mcpServer, sess, idx, config.RootDir)

	return &MCPServer{
		config:  config,
		session: sess,
		index:   idx,
		mcp:     mcpServer,
	}, nil
}

// Close releases the search index. The session stays with the caller.
func (s *MCPServer) Close() error {
	return s.index.Close()
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *MCPServer) Serve(ctx context.Context) error {
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
