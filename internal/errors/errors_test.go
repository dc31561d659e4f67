package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

// TestDebugError_Error verifies the hint is appended to the message.
func TestDebugError_Error(t *testing.T) {
	err := HostUnavailable("no packs")
	msg := err.Error()

	if !strings.HasPrefix(msg, "content patcher state is unavailable: no packs") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, " | Hint: ") {
		t.Errorf("expected hint in message: %s", msg)
	}

	plain := &DebugError{Code: CodeConfigInvalid, Message: "bad"}
	if plain.Error() != "bad" {
		t.Errorf("expected message without hint, got %s", plain.Error())
	}
}

// TestGetCode verifies codes are found through wrapping.
func TestGetCode(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := TransportFailed("abc", cause)

	if GetCode(err) != CodeTransportFailed {
		t.Errorf("expected %s, got %s", CodeTransportFailed, GetCode(err))
	}

	wrapped := fmt.Errorf("serve: %w", err)
	if GetCode(wrapped) != CodeTransportFailed {
		t.Errorf("expected code through wrapping, got %s", GetCode(wrapped))
	}
	if !Is(wrapped, cause) {
		t.Error("expected cause to be reachable")
	}

	var de *DebugError
	if !As(wrapped, &de) || de.Details["sessionId"] == nil {
		t.Errorf("expected session id detail, got %+v", de)
	}

	if GetCode(cause) != "" {
		t.Errorf("expected empty code for a plain error, got %s", GetCode(cause))
	}
}

// TestWithDetails verifies details and causes can be added after construction.
func TestWithDetails(t *testing.T) {
	cause := stderrors.New("unexpected end of JSON input")
	err := InvalidParameter("breakpoints", "[", "a JSON array").
		WithDetails("index", 0).
		WithCause(cause)

	if err.Details["index"] != 0 {
		t.Errorf("expected index detail, got %+v", err.Details)
	}
	if !Is(err, cause) {
		t.Error("expected WithCause to set the unwrap target")
	}
}
