// Package types defines shared data types used across the debugger.
//
// This package provides type definitions for:
//   - LineRange: source span of a patch entry inside a content file
//   - SessionStatus: debug session states (initializing, configuring, stopped, terminated)
//   - Info types: SessionInfo, ThreadInfo, StackFrame, Scope, Variable, Breakpoint
//   - DebugSnapshot: a flattened thread/frame/scope/variable tree for inspection
//
// These types are shared by the DAP server, the MCP front-end and the CLI so that
// JSON output looks the same wherever a snapshot is printed.
package types

import "time"

// LineRange is the source span of a configuration entry. Lines and columns are 1-based.
// StartColumn is the column of the opening brace and EndColumn the column of the
// closing brace.
type LineRange struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Contains reports whether line falls inside the range, inclusive on both ends.
func (r LineRange) Contains(line int) bool {
	return line >= r.StartLine && line <= r.EndLine
}

// IsZero reports whether the range was never computed.
func (r LineRange) IsZero() bool {
	return r == LineRange{}
}

// SessionStatus represents the status of a debug session
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "initializing"
	SessionStatusConfiguring  SessionStatus = "configuring"
	SessionStatusStopped      SessionStatus = "stopped"
	SessionStatusTerminated   SessionStatus = "terminated"
)

// SessionInfo represents information about a connected debug session
type SessionInfo struct {
	SessionID       string        `json:"sessionId"`
	Status          SessionStatus `json:"status"`
	RemoteAddr      string        `json:"remoteAddr,omitempty"`
	BreakpointFiles int           `json:"breakpointFiles"`
	Invalidations   int           `json:"invalidations"`
	ConnectedAt     time.Time     `json:"connectedAt"`
}

// ThreadInfo represents information about a thread
type ThreadInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StackFrame represents a stack frame
type StackFrame struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Source    *SourceInfo `json:"source,omitempty"`
	Line      int         `json:"line"`
	Column    int         `json:"column,omitempty"`
	EndLine   int         `json:"endLine,omitempty"`
	EndColumn int         `json:"endColumn,omitempty"`
}

// SourceInfo represents source file information
type SourceInfo struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// Scope represents a variable scope
type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
}

// Variable represents a variable
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	VariablesReference int    `json:"variablesReference"`
}

// Breakpoint represents a breakpoint resolution result
type Breakpoint struct {
	Verified  bool        `json:"verified"`
	Message   string      `json:"message,omitempty"`
	Source    *SourceInfo `json:"source,omitempty"`
	Line      int         `json:"line,omitempty"`
	Column    int         `json:"column,omitempty"`
	EndLine   int         `json:"endLine,omitempty"`
	EndColumn int         `json:"endColumn,omitempty"`
}

// SourceMapEntry describes one patch tracked for a content file
type SourceMapEntry struct {
	PatchID string    `json:"patchId"`
	Path    string    `json:"path"`
	Range   LineRange `json:"range"`
}

// DebugSnapshot represents a complete snapshot of debug state
type DebugSnapshot struct {
	SessionID string               `json:"sessionId,omitempty"`
	Threads   []ThreadInfo         `json:"threads"`
	Stacks    map[int][]StackFrame `json:"stacks"`              // threadId -> stack frames
	Scopes    map[int][]Scope      `json:"scopes"`              // frameId -> scopes
	Variables map[int][]Variable   `json:"variables,omitempty"` // variablesReference -> variables
}
