// Package snapshot turns the engine's live token state into the thread, stack frame,
// scope and variable tree a debugger client browses.
//
// A Snapshot is built once per stopped cycle and is read-only afterwards. Every id
// in it (thread, frame, variable container) comes from one IDAllocator, so ids are
// unique across entity kinds for as long as the allocator lives.
package snapshot

import (
	"github.com/google/go-dap"

	"github.com/sinz/cp-debugger/pkg/types"
)

// TokenStateThread is the name of the thread holding one frame per content pack.
const TokenStateThread = "Token State"

// Display values for tokens that do not resolve to plain values.
const (
	ValueNeedsInput = "<needs input>"
	ValueNotReady   = "<not ready>"
	ValueEmpty      = "<empty>"
	ValueNotLoaded  = "<not loaded>"
)

// Scope names.
const (
	ScopeGlobal          = "Global"
	ScopeLocal           = "Local"
	ScopeDynamic         = "Dynamic Tokens"
	ScopeConsumed        = "Consumed Tokens"
	ScopePatchFields     = "Patch Field Tokens"
	ScopeCustomLocal     = "Local Tokens"
	ScopeInheritedLocals = "Inherited Local Tokens"
)

// IDAllocator hands out monotonically increasing ids. It is owned by one session
// and is not safe for concurrent use.
type IDAllocator struct {
	last int
}

// Next returns a fresh id, starting at 1.
func (a *IDAllocator) Next() int {
	a.last++
	return a.last
}

// Last returns the most recently allocated id, or 0.
func (a *IDAllocator) Last() int {
	return a.last
}

// Snapshot is the debugger's view of the engine at one point in time.
type Snapshot struct {
	Threads   []dap.Thread
	Frames    map[int][]dap.StackFrame
	Scopes    map[int][]dap.Scope
	Variables map[int][]dap.Variable
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Threads:   []dap.Thread{},
		Frames:    make(map[int][]dap.StackFrame),
		Scopes:    make(map[int][]dap.Scope),
		Variables: make(map[int][]dap.Variable),
	}
}

// Empty returns a snapshot with no threads.
func Empty() *Snapshot {
	return newSnapshot()
}

// StackFrames returns the frames of a thread, or an empty list for unknown ids.
func (s *Snapshot) StackFrames(threadID int) []dap.StackFrame {
	if frames, ok := s.Frames[threadID]; ok {
		return frames
	}
	return []dap.StackFrame{}
}

// ScopesFor returns the scopes of a frame, or an empty list for unknown ids.
func (s *Snapshot) ScopesFor(frameID int) []dap.Scope {
	if scopes, ok := s.Scopes[frameID]; ok {
		return scopes
	}
	return []dap.Scope{}
}

// VariablesFor returns the contents of a variable container, or an empty list for
// unknown references.
func (s *Snapshot) VariablesFor(ref int) []dap.Variable {
	if vars, ok := s.Variables[ref]; ok {
		return vars
	}
	return []dap.Variable{}
}

// View converts the snapshot to the JSON shape shared with the MCP front-end.
func (s *Snapshot) View() types.DebugSnapshot {
	view := types.DebugSnapshot{
		Threads:   make([]types.ThreadInfo, len(s.Threads)),
		Stacks:    make(map[int][]types.StackFrame, len(s.Frames)),
		Scopes:    make(map[int][]types.Scope, len(s.Scopes)),
		Variables: make(map[int][]types.Variable, len(s.Variables)),
	}

	for i, t := range s.Threads {
		view.Threads[i] = types.ThreadInfo{ID: t.Id, Name: t.Name}
	}
	for id, frames := range s.Frames {
		out := make([]types.StackFrame, len(frames))
		for i, f := range frames {
			out[i] = FrameInfo(f)
		}
		view.Stacks[id] = out
	}
	for id, scopes := range s.Scopes {
		out := make([]types.Scope, len(scopes))
		for i, sc := range scopes {
			out[i] = types.Scope{Name: sc.Name, VariablesReference: sc.VariablesReference}
		}
		view.Scopes[id] = out
	}
	for id, vars := range s.Variables {
		out := make([]types.Variable, len(vars))
		for i, v := range vars {
			out[i] = types.Variable{Name: v.Name, Value: v.Value, VariablesReference: v.VariablesReference}
		}
		view.Variables[id] = out
	}
	return view
}

// FrameInfo converts a DAP stack frame to its shared JSON shape.
func FrameInfo(f dap.StackFrame) types.StackFrame {
	info := types.StackFrame{
		ID:        f.Id,
		Name:      f.Name,
		Line:      f.Line,
		Column:    f.Column,
		EndLine:   f.EndLine,
		EndColumn: f.EndColumn,
	}
	if f.Source != nil {
		info.Source = &types.SourceInfo{Name: f.Source.Name, Path: f.Source.Path}
	}
	return info
}

// IDs returns every id in the snapshot with the number of entities using it.
// Variable containers are counted once even when several scopes share one.
func (s *Snapshot) IDs() map[int]int {
	counts := make(map[int]int)
	for _, t := range s.Threads {
		counts[t.Id]++
	}
	for _, frames := range s.Frames {
		for _, f := range frames {
			counts[f.Id]++
		}
	}
	for ref := range s.Variables {
		counts[ref]++
	}
	return counts
}

// BreakpointInfo converts a DAP breakpoint to its shared JSON shape.
func BreakpointInfo(bp dap.Breakpoint) types.Breakpoint {
	info := types.Breakpoint{
		Verified:  bp.Verified,
		Message:   bp.Message,
		Line:      bp.Line,
		Column:    bp.Column,
		EndLine:   bp.EndLine,
		EndColumn: bp.EndColumn,
	}
	if bp.Source != nil {
		info.Source = &types.SourceInfo{Name: bp.Source.Name, Path: bp.Source.Path}
	}
	return info
}
