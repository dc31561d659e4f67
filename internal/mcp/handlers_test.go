package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sinz/cp-debugger/internal/config"
	"github.com/sinz/cp-debugger/internal/content"
	"github.com/sinz/cp-debugger/internal/dap"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/internal/sourcemap"
	"github.com/sinz/cp-debugger/pkg/types"
)

const testPackFile = "/mods/[CP] Test/content.json"

func newTestServer(t *testing.T, refresh RefreshFunc) *Server {
	t.Helper()
	h := &host.StaticHost{
		PackList: []host.Pack{{ID: "me.test", Name: "Test Pack", Dir: "/mods/[CP] Test"}},
		Global:   host.NewContext(host.NewValueToken("Season", "spring")),
	}
	patch := &host.StaticPatch{
		PatchID:   "p1",
		PatchPath: "Test Pack > Load Portraits/Abby",
		Pack:      "me.test",
		Used:      []string{"Season"},
		Ctx:       host.PatchContexts{PatchFields: h.Global},
	}

	sm := sourcemap.New()
	sm.Register(testPackFile, patch, &content.PatchConfig{
		Range: types.LineRange{StartLine: 4, StartColumn: 5, EndLine: 8, EndColumn: 5},
	})

	manager := dap.NewSessionManager(sm, func() host.Host { return h }, 0)
	t.Cleanup(manager.Close)

	return NewServer(config.DefaultConfig(), manager, sm, func() host.Host { return h }, refresh)
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return result, text.Text
}

// TestHandleListSessions verifies an idle server reports no sessions.
func TestHandleListSessions(t *testing.T) {
	s := newTestServer(t, nil)

	result, text := callTool(t, s.handleListSessions, nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", text)
	}

	var out struct {
		Sessions []types.SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(out.Sessions) != 0 {
		t.Errorf("expected no sessions, got %+v", out.Sessions)
	}
}

// TestHandleSourceMap verifies listing files and describing one file.
func TestHandleSourceMap(t *testing.T) {
	s := newTestServer(t, nil)

	_, text := callTool(t, s.handleSourceMap, nil)
	if !strings.Contains(text, "content.json") {
		t.Errorf("expected tracked file in %s", text)
	}

	_, text = callTool(t, s.handleSourceMap, map[string]any{"path": testPackFile})
	var out struct {
		Patches []types.SourceMapEntry `json:"patches"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(out.Patches) != 1 || out.Patches[0].PatchID != "p1" || out.Patches[0].Range.StartLine != 4 {
		t.Errorf("unexpected patches: %+v", out.Patches)
	}

	result, _ := callTool(t, s.handleSourceMap, map[string]any{"path": "/mods/other.json"})
	if !result.IsError {
		t.Error("expected error for an untracked file")
	}
}

// TestHandleSnapshot verifies breakpoints add a pack thread to the snapshot.
func TestHandleSnapshot(t *testing.T) {
	s := newTestServer(t, nil)

	_, text := callTool(t, s.handleSnapshot, nil)
	var plain struct {
		HostLoaded bool                `json:"hostLoaded"`
		Snapshot   types.DebugSnapshot `json:"snapshot"`
	}
	if err := json.Unmarshal([]byte(text), &plain); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !plain.HostLoaded || len(plain.Snapshot.Threads) != 1 {
		t.Errorf("expected only the token state thread, got %+v", plain.Snapshot.Threads)
	}

	bps := `[{"path": "` + testPackFile + `", "line": 6}, {"path": "` + testPackFile + `", "line": 20}]`
	_, text = callTool(t, s.handleSnapshot, map[string]any{"breakpoints": bps})
	var withBPs struct {
		Breakpoints []types.Breakpoint  `json:"breakpoints"`
		Snapshot    types.DebugSnapshot `json:"snapshot"`
	}
	if err := json.Unmarshal([]byte(text), &withBPs); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(withBPs.Breakpoints) != 2 {
		t.Fatalf("expected 2 breakpoints, got %+v", withBPs.Breakpoints)
	}
	if !withBPs.Breakpoints[0].Verified || withBPs.Breakpoints[0].Line != 4 {
		t.Errorf("expected first breakpoint verified at line 4, got %+v", withBPs.Breakpoints[0])
	}
	if withBPs.Breakpoints[1].Verified {
		t.Errorf("expected second breakpoint unverified, got %+v", withBPs.Breakpoints[1])
	}
	if len(withBPs.Snapshot.Threads) != 2 || withBPs.Snapshot.Threads[1].Name != "Test Pack" {
		t.Errorf("expected a pack thread, got %+v", withBPs.Snapshot.Threads)
	}
}

// TestHandleSnapshot_InvalidBreakpoints verifies malformed breakpoint input is rejected.
func TestHandleSnapshot_InvalidBreakpoints(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		bps  string
	}{
		{"not json", `[{`},
		{"missing path", `[{"line": 3}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, text := callTool(t, s.handleSnapshot, map[string]any{"breakpoints": tt.bps})
			if !result.IsError {
				t.Errorf("expected error, got %s", text)
			}
		})
	}
}

// TestHandleRefresh verifies refresh reports the notified sessions and fails without
// a reload function.
func TestHandleRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	result, _ := callTool(t, s.handleRefresh, nil)
	if !result.IsError {
		t.Error("expected error without a refresh function")
	}

	calls := 0
	s = newTestServer(t, func() (int, error) {
		calls++
		return 3, nil
	})
	result, text := callTool(t, s.handleRefresh, nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if calls != 1 || !strings.Contains(text, `"sessionsNotified":3`) {
		t.Errorf("unexpected refresh result (calls=%d): %s", calls, text)
	}
}
