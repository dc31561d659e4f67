// Package errors provides structured error types for the debugger.
// These errors carry a machine-readable code plus a hint that tells the
// operator (or an MCP client) what to do about the failure.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Server errors
	CodeListenFailed    ErrorCode = "LISTEN_FAILED"
	CodeHostUnavailable ErrorCode = "HOST_UNAVAILABLE"
	CodeTransportFailed ErrorCode = "TRANSPORT_FAILED"

	// Session errors
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionLimitReached ErrorCode = "SESSION_LIMIT_REACHED"

	// Content errors
	CodeContentParseFailed ErrorCode = "CONTENT_PARSE_FAILED"
	CodeManifestInvalid    ErrorCode = "MANIFEST_INVALID"
	CodeTokenStateInvalid  ErrorCode = "TOKEN_STATE_INVALID"

	// Parameter errors
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Configuration errors
	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// Breakpoint failure reasons reported to the debugger client. They are part of the
// wire contract, so they stay plain strings rather than DebugErrors.
const (
	ReasonUntrackedFile = "Untracked file"
	ReasonUnknownPatch  = "Unknown patch at this location"
)

// DebugError is a structured error type that includes a hint on how to fix it.
type DebugError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the invalid value, expected format)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DebugError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}

	return sb.String()
}

// Unwrap returns the underlying error for error chaining
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *DebugError) WithDetails(key string, value interface{}) *DebugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DebugError) WithCause(err error) *DebugError {
	e.Cause = err
	return e
}

// --- Server Errors ---

// ListenFailed creates an error for a listener that could not bind
func ListenFailed(address string, err error) *DebugError {
	return &DebugError{
		Code:    CodeListenFailed,
		Message: fmt.Sprintf("failed to listen on %s: %v", address, err),
		Hint:    "Another process may already use this port. Pick a different port with -port or the \"port\" config field, then restart.",
		Cause:   err,
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// HostUnavailable creates an error for a missing content-patching engine
func HostUnavailable(reason string) *DebugError {
	return &DebugError{
		Code:    CodeHostUnavailable,
		Message: fmt.Sprintf("content patcher state is unavailable: %s", reason),
		Hint:    "The server keeps running and serves empty snapshots. Point -packs at a directory of content packs to inspect them.",
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// TransportFailed creates an error for a broken debugger connection
func TransportFailed(sessionID string, err error) *DebugError {
	return &DebugError{
		Code:    CodeTransportFailed,
		Message: fmt.Sprintf("debug session %s transport failed: %v", sessionID, err),
		Hint:    "The debugger client disconnected or sent a malformed frame. Reconnect the client.",
		Cause:   err,
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// --- Session Errors ---

// SessionNotFound creates an error for when a session ID doesn't exist
func SessionNotFound(sessionID string) *DebugError {
	return &DebugError{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session '%s' not found", sessionID),
		Hint:    "Use debugger_list_sessions to see connected sessions.",
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// SessionLimitReached creates an error when max sessions is reached
func SessionLimitReached(maxSessions int) *DebugError {
	return &DebugError{
		Code:    CodeSessionLimitReached,
		Message: fmt.Sprintf("maximum number of sessions (%d) reached", maxSessions),
		Hint:    "Disconnect another debugger client or raise maxSessions in the config.",
		Details: map[string]interface{}{
			"maxSessions": maxSessions,
		},
	}
}

// --- Content Errors ---

// ContentParseFailed creates an error for a content file that could not be parsed
func ContentParseFailed(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeContentParseFailed,
		Message: fmt.Sprintf("failed to parse %s: %v", path, err),
		Hint:    "Fix the JSON syntax in the content file. Comments and trailing commas are allowed.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// ManifestInvalid creates an error for a content pack with a broken manifest
func ManifestInvalid(path, reason string) *DebugError {
	return &DebugError{
		Code:    CodeManifestInvalid,
		Message: fmt.Sprintf("manifest %s is invalid: %s", path, reason),
		Hint:    "Every content pack needs a manifest.json with Name and UniqueID.",
		Details: map[string]interface{}{
			"path":   path,
			"reason": reason,
		},
	}
}

// TokenStateInvalid creates an error for an unreadable token state file
func TokenStateInvalid(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeTokenStateInvalid,
		Message: fmt.Sprintf("token state file %s is invalid: %v", path, err),
		Hint:    "The token state file is YAML with top-level 'global' and 'packs' maps.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// --- Parameter Errors ---

// MissingParameter creates an error for missing required parameters
func MissingParameter(param string, hint string) *DebugError {
	return &DebugError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("missing required parameter: %s", param),
		Hint:    hint,
		Details: map[string]interface{}{
			"parameter": param,
		},
	}
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(param string, value interface{}, expected string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter '%s': %v", param, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"parameter": param,
			"value":     value,
			"expected":  expected,
		},
	}
}

// --- Configuration Errors ---

// ConfigInvalid creates an error for invalid configuration
func ConfigInvalid(field, reason string) *DebugError {
	return &DebugError{
		Code:    CodeConfigInvalid,
		Message: fmt.Sprintf("configuration field '%s' is invalid: %s", field, reason),
		Hint:    "Check the config file and command line flags.",
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// --- Helpers ---

// GetCode returns the code of a DebugError anywhere in err's chain, or "" if there is none
func GetCode(err error) ErrorCode {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
