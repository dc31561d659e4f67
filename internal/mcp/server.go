// Package mcp provides the Model Context Protocol (MCP) server implementation.
//
// This package exposes the debugger's view of the engine through MCP tools so that
// AI assistants and other MCP clients can inspect token state without a DAP client:
//
//   - debugger_list_sessions: List connected debugger sessions
//   - debugger_source_map: List tracked content files, or the patches of one file
//   - debugger_snapshot: Build a token state snapshot, optionally with breakpoints
//   - debugger_refresh: Reload content and tell every session its variables are stale
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/sinz/cp-debugger/internal/config"
	"github.com/sinz/cp-debugger/internal/dap"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/internal/sourcemap"
	"github.com/sinz/cp-debugger/internal/version"
)

// RefreshFunc reloads the engine state and broadcasts invalidation. It returns the
// number of sessions notified.
type RefreshFunc func() (int, error)

// Server wraps the MCP server with debugging capabilities
type Server struct {
	mcpServer      *server.MCPServer
	sessionManager *dap.SessionManager
	sourceMap      *sourcemap.SourceMap
	hostFn         dap.HostProvider
	refresh        RefreshFunc
	config         *config.Config
}

// NewServer creates a new MCP server over the running debugger. refresh may be nil
// when there is nothing to reload.
func NewServer(cfg *config.Config, manager *dap.SessionManager, sm *sourcemap.SourceMap, hostFn dap.HostProvider, refresh RefreshFunc) *Server {
	mcpServer := server.NewMCPServer(
		"cp-debugger",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	if hostFn == nil {
		hostFn = func() host.Host { return nil }
	}

	s := &Server{
		mcpServer:      mcpServer,
		sessionManager: manager,
		sourceMap:      sm,
		hostFn:         hostFn,
		refresh:        refresh,
		config:         cfg,
	}

	s.registerTools()

	return s
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// GetConfig returns the server configuration
func (s *Server) GetConfig() *config.Config {
	return s.config
}
