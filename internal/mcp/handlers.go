package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/go-dap"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/snapshot"
	"github.com/sinz/cp-debugger/pkg/types"
)

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.sessionManager.ListSessions()

	result := make([]types.SessionInfo, len(sessions))
	for i, session := range sessions {
		result[i] = session.Info()
	}

	return jsonResult(map[string]interface{}{
		"sessions": result,
	})
}

func (s *Server) handleSourceMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil || path == "" {
		return jsonResult(map[string]interface{}{
			"files": s.sourceMap.Files(),
		})
	}

	entries, ok := s.sourceMap.Describe(path)
	if !ok {
		return mcp.NewToolResultError(errors.InvalidParameter("path", path, "a tracked content file; call debugger_source_map without a path to list them").Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"path":    path,
		"patches": entries,
	})
}

func (s *Server) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var bpRequests []struct {
		Path string `json:"path"`
		Line int    `json:"line"`
	}

	if bpsJSON, err := request.RequireString("breakpoints"); err == nil && bpsJSON != "" {
		if err := json.Unmarshal([]byte(bpsJSON), &bpRequests); err != nil {
			return mcp.NewToolResultError(errors.InvalidParameter("breakpoints", bpsJSON, `a JSON array like [{"path": "/mods/[CP] Pack/content.json", "line": 12}]`).WithCause(err).Error()), nil
		}
	}

	// group lines per file, keeping request order
	var files []string
	lines := make(map[string][]int)
	for _, bp := range bpRequests {
		if bp.Path == "" {
			return mcp.NewToolResultError(errors.MissingParameter("breakpoints[].path", "Every breakpoint needs the content file path.").Error()), nil
		}
		if _, seen := lines[bp.Path]; !seen {
			files = append(files, bp.Path)
		}
		lines[bp.Path] = append(lines[bp.Path], bp.Line)
	}

	set := snapshot.NewBreakpointSet()
	var resolved []types.Breakpoint
	for _, file := range files {
		source := dap.Source{Name: filepath.Base(file), Path: file}
		bps := set.Set(s.sourceMap, source, lines[file])
		for _, bp := range bps {
			resolved = append(resolved, snapshot.BreakpointInfo(bp))
		}
	}

	h := s.hostFn()
	snap := snapshot.Build(h, set, &snapshot.IDAllocator{})

	return jsonResult(map[string]interface{}{
		"hostLoaded":  h != nil,
		"breakpoints": resolved,
		"snapshot":    snap.View(),
	})
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.refresh == nil {
		return mcp.NewToolResultError(errors.HostUnavailable("no packs directory is configured, so there is nothing to reload").Error()), nil
	}

	notified, err := s.refresh()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"reloaded":         true,
		"trackedFiles":     len(s.sourceMap.Files()),
		"sessionsNotified": notified,
	})
}

// Helper functions

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
