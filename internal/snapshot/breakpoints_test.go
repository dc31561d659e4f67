package snapshot

import (
	"testing"

	"github.com/google/go-dap"

	"github.com/sinz/cp-debugger/internal/content"
	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/internal/sourcemap"
	"github.com/sinz/cp-debugger/pkg/types"
)

func trackedMap() *sourcemap.SourceMap {
	sm := sourcemap.New()
	sm.Register(packFile, &host.StaticPatch{PatchID: "a", PatchPath: "Test Pack > A"},
		&content.PatchConfig{Range: types.LineRange{StartLine: 5, StartColumn: 5, EndLine: 9, EndColumn: 5}})
	sm.Register(packFile, &host.StaticPatch{PatchID: "b", PatchPath: "Test Pack > B"},
		&content.PatchConfig{Range: types.LineRange{StartLine: 10, StartColumn: 5, EndLine: 12, EndColumn: 5}})
	return sm
}

// TestResolveBreakpoints verifies per-line verification against tracked patches.
func TestResolveBreakpoints(t *testing.T) {
	sm := trackedMap()

	tests := []struct {
		name      string
		path      string
		line      int
		verified  bool
		message   string
		wantLine  int
		wantPatch string
	}{
		{name: "inside second patch", path: packFile, line: 11, verified: true, wantLine: 10, wantPatch: "b"},
		{name: "first line of patch", path: packFile, line: 5, verified: true, wantLine: 5, wantPatch: "a"},
		{name: "last line of patch", path: packFile, line: 12, verified: true, wantLine: 10, wantPatch: "b"},
		{name: "between patches", path: packFile, line: 2, message: errors.ReasonUnknownPatch, wantLine: 2},
		{name: "path differs in case", path: "/MODS/[cp] test/Content.json", line: 6, verified: true, wantLine: 5, wantPatch: "a"},
		{name: "untracked file", path: "/mods/other/content.json", line: 3, message: errors.ReasonUntrackedFile, wantLine: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := dap.Source{Name: "content.json", Path: tt.path}
			bps, matched := ResolveBreakpoints(sm, source, []int{tt.line})

			if len(bps) != 1 {
				t.Fatalf("expected 1 breakpoint, got %d", len(bps))
			}
			bp := bps[0]
			if bp.Verified != tt.verified {
				t.Errorf("expected verified=%v, got %v", tt.verified, bp.Verified)
			}
			if bp.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, bp.Message)
			}
			if bp.Line != tt.wantLine {
				t.Errorf("expected line %d, got %d", tt.wantLine, bp.Line)
			}

			if !tt.verified {
				if len(matched) != 0 {
					t.Errorf("expected no matched entries, got %d", len(matched))
				}
				return
			}
			if bp.Source == nil || bp.Source.Path != tt.path {
				t.Errorf("expected source echoed back, got %+v", bp.Source)
			}
			if len(matched) != 1 || matched[0].Patch.ID() != tt.wantPatch {
				t.Errorf("expected match on patch %s, got %+v", tt.wantPatch, matched)
			}
		})
	}
}

// TestResolveBreakpoints_RequestOrder verifies one result per requested line, in order.
func TestResolveBreakpoints_RequestOrder(t *testing.T) {
	bps, matched := ResolveBreakpoints(trackedMap(), dap.Source{Path: packFile}, []int{11, 1, 7})

	if len(bps) != 3 {
		t.Fatalf("expected 3 breakpoints, got %d", len(bps))
	}
	if !bps[0].Verified || bps[1].Verified || !bps[2].Verified {
		t.Errorf("unexpected verification pattern: %+v", bps)
	}
	if len(matched) != 2 || matched[0].Patch.ID() != "b" || matched[1].Patch.ID() != "a" {
		t.Errorf("unexpected matched entries: %+v", matched)
	}
}

// TestBreakpointSet_Replace verifies replacing a file's breakpoints does not accumulate.
func TestBreakpointSet_Replace(t *testing.T) {
	sm := trackedMap()
	set := NewBreakpointSet()

	_, matched := ResolveBreakpoints(sm, dap.Source{Path: packFile}, []int{6, 7, 11})
	set.Replace(packFile, matched)
	set.Replace(packFile, matched)

	if set.Len() != 1 {
		t.Fatalf("expected 1 file, got %d", set.Len())
	}
	entries := set.Entries(packFile)
	if len(entries) != 2 {
		t.Fatalf("expected 2 deduplicated entries, got %d", len(entries))
	}
	if entries[0].Patch.ID() != "a" || entries[1].Patch.ID() != "b" {
		t.Errorf("unexpected entry order: %s, %s", entries[0].Patch.ID(), entries[1].Patch.ID())
	}

	set.Replace(packFile, nil)
	if got := len(set.Entries(packFile)); got != 0 {
		t.Errorf("expected cleared entries, got %d", got)
	}
	if files := set.Files(); len(files) != 1 || files[0] != packFile {
		t.Errorf("unexpected files: %v", files)
	}
}

// TestBreakpointSet_Refresh verifies registrations follow a reload of the source map.
func TestBreakpointSet_Refresh(t *testing.T) {
	sm := trackedMap()
	set := NewBreakpointSet()

	bps := set.Set(sm, dap.Source{Path: packFile}, []int{11})
	if len(bps) != 1 || !bps[0].Verified {
		t.Fatalf("expected verified breakpoint, got %+v", bps)
	}
	old := set.Entries(packFile)[0].Patch

	reloaded := &host.StaticPatch{PatchID: "b", PatchPath: "Test Pack > B (reloaded)"}
	sm.ReplaceFiles([]string{packFile}, []sourcemap.Registration{{
		File:   packFile,
		Patch:  reloaded,
		Config: &content.PatchConfig{Range: types.LineRange{StartLine: 11, StartColumn: 5, EndLine: 14, EndColumn: 5}},
	}})
	set.Refresh(sm)

	entries := set.Entries(packFile)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after refresh, got %d", len(entries))
	}
	if entries[0].Patch == old || entries[0].Patch.Path() != "Test Pack > B (reloaded)" {
		t.Errorf("expected the reloaded patch, got %s", entries[0].Patch.Path())
	}
	if entries[0].Range().EndLine != 14 {
		t.Errorf("expected the reloaded range, got %+v", entries[0].Range())
	}

	sm.ReplaceFiles([]string{packFile}, nil)
	set.Refresh(sm)
	if got := len(set.Entries(packFile)); got != 0 {
		t.Errorf("expected no entries once the file is untracked, got %d", got)
	}
}
