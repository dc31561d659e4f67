package types

import (
	"encoding/json"
	"testing"
)

// TestSessionStatusConstants verifies session status constant values.
func TestSessionStatusConstants(t *testing.T) {
	tests := []struct {
		status   SessionStatus
		expected string
	}{
		{SessionStatusInitializing, "initializing"},
		{SessionStatusConfiguring, "configuring"},
		{SessionStatusStopped, "stopped"},
		{SessionStatusTerminated, "terminated"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if string(tc.status) != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, string(tc.status))
			}
		})
	}
}

// TestLineRange_Contains verifies both ends of a range are inclusive.
func TestLineRange_Contains(t *testing.T) {
	r := LineRange{StartLine: 10, StartColumn: 5, EndLine: 12, EndColumn: 5}

	tests := []struct {
		line int
		want bool
	}{
		{9, false},
		{10, true},
		{11, true},
		{12, true},
		{13, false},
	}

	for _, tc := range tests {
		if got := r.Contains(tc.line); got != tc.want {
			t.Errorf("Contains(%d) = %v, want %v", tc.line, got, tc.want)
		}
	}

	if r.IsZero() {
		t.Error("expected computed range not to be zero")
	}
	if !(LineRange{}).IsZero() {
		t.Error("expected empty range to be zero")
	}
}

// TestDebugSnapshot_JSON verifies the snapshot field names clients rely on.
func TestDebugSnapshot_JSON(t *testing.T) {
	snap := DebugSnapshot{
		Threads: []ThreadInfo{{ID: 1, Name: "Token State"}},
		Stacks:  map[int][]StackFrame{1: {{ID: 2, Name: "Global Tokens"}}},
		Scopes:  map[int][]Scope{2: {{Name: "Tokens", VariablesReference: 3}}},
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"threads", "stacks", "scopes"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
	for _, key := range []string{"sessionId", "variables"} {
		if _, ok := raw[key]; ok {
			t.Errorf("expected empty %q to be omitted", key)
		}
	}
}
