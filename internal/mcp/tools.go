package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the debugger tool API
func (s *Server) registerTools() {
	s.registerListSessions()
	s.registerSourceMap()
	s.registerSnapshot()
	s.registerRefresh()
}

func (s *Server) registerListSessions() {
	tool := mcp.NewTool("debugger_list_sessions",
		mcp.WithDescription("List the debugger clients currently connected to the DAP listener, with their status and breakpoint counts."),
	)
	s.mcpServer.AddTool(tool, s.handleListSessions)
}

func (s *Server) registerSourceMap() {
	tool := mcp.NewTool("debugger_source_map",
		mcp.WithDescription("List content files with tracked patches. With a path, list the patches loaded from that file and the line range of each."),
		mcp.WithString("path",
			mcp.Description("Content file path. Omit to list every tracked file."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSourceMap)
}

func (s *Server) registerSnapshot() {
	tool := mcp.NewTool("debugger_snapshot",
		mcp.WithDescription("Build the token state tree a debugger client would see: threads, stack frames, scopes and variables. Breakpoints add a thread per pack with a frame per matched patch. Returns: {breakpoints, snapshot}."),
		mcp.WithString("breakpoints",
			mcp.Description("JSON array of breakpoints: [{path: string, line: number}]"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSnapshot)
}

func (s *Server) registerRefresh() {
	tool := mcp.NewTool("debugger_refresh",
		mcp.WithDescription("Reload content packs and token state from disk, then tell every connected debugger client to re-fetch its variables."),
	)
	s.mcpServer.AddTool(tool, s.handleRefresh)
}
