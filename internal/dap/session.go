package dap

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/internal/snapshot"
	"github.com/sinz/cp-debugger/internal/sourcemap"
	"github.com/sinz/cp-debugger/pkg/types"
)

// HostProvider returns the engine state sessions inspect. It returns nil while no
// engine is loaded.
type HostProvider func() host.Host

// StoppedDescription is shown by clients next to the stopped thread.
const StoppedDescription = "Debug View"

// Session is one connected debugger client. Requests are handled one at a time on
// the goroutine running Serve; only Invalidate and Info may be called from others.
type Session struct {
	ID         string
	RemoteAddr string
	CreatedAt  time.Time

	transport *Transport
	sourceMap *sourcemap.SourceMap
	hostFn    HostProvider

	// owned by the Serve goroutine
	ids         snapshot.IDAllocator
	breakpoints *snapshot.BreakpointSet
	snap        *snapshot.Snapshot
	stopped     bool

	mu            sync.RWMutex
	status        types.SessionStatus
	bpFiles       int
	invalidations int
}

// NewSession creates a session speaking DAP over transport.
func NewSession(id string, transport *Transport, sm *sourcemap.SourceMap, hostFn HostProvider) *Session {
	if hostFn == nil {
		hostFn = func() host.Host { return nil }
	}
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		transport:   transport,
		sourceMap:   sm,
		hostFn:      hostFn,
		breakpoints: snapshot.NewBreakpointSet(),
		snap:        snapshot.Empty(),
		status:      types.SessionStatusInitializing,
	}
}

// Serve reads and handles requests until the client disconnects or the connection
// fails. A clean end of stream or a disconnect request returns nil.
func (s *Session) Serve() error {
	defer s.setStatus(types.SessionStatusTerminated)

	for {
		msg, err := s.transport.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// The frame was read in full, so the stream is still in sync.
			var fieldErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldErr) {
				if fieldErr.SubType != "request" {
					log.Printf("Session %s: dropping undecodable %s: %v", s.ID, fieldErr.SubType, fieldErr)
					continue
				}
				resp := newErrorResponse(fieldErr.Seq, fieldErr.FieldValue, fmt.Sprintf("%s is not supported", fieldErr.FieldValue))
				if err := s.send(resp); err != nil {
					return errors.TransportFailed(s.ID, err)
				}
				continue
			}
			return errors.TransportFailed(s.ID, err)
		}

		done, err := s.dispatch(msg)
		if err != nil {
			return errors.TransportFailed(s.ID, err)
		}
		if done {
			return nil
		}
	}
}

// dispatch handles one inbound message and reports whether the session should end.
func (s *Session) dispatch(msg dap.Message) (bool, error) {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		return false, s.onInitialize(req)
	case *dap.ConfigurationDoneRequest:
		resp := &dap.ConfigurationDoneResponse{Response: *newResponse(req.Seq, req.Command)}
		return false, s.send(resp)
	case *dap.LaunchRequest:
		resp := &dap.LaunchResponse{Response: *newResponse(req.Seq, req.Command)}
		return false, s.send(resp)
	case *dap.AttachRequest:
		resp := &dap.AttachResponse{Response: *newResponse(req.Seq, req.Command)}
		return false, s.send(resp)
	case *dap.SetBreakpointsRequest:
		return false, s.onSetBreakpoints(req)
	case *dap.SetExceptionBreakpointsRequest:
		resp := &dap.SetExceptionBreakpointsResponse{Response: *newResponse(req.Seq, req.Command)}
		resp.Body.Breakpoints = []dap.Breakpoint{}
		return false, s.send(resp)
	case *dap.ThreadsRequest:
		return false, s.onThreads(req)
	case *dap.StackTraceRequest:
		return false, s.onStackTrace(req)
	case *dap.ScopesRequest:
		resp := &dap.ScopesResponse{Response: *newResponse(req.Seq, req.Command)}
		resp.Body.Scopes = s.snap.ScopesFor(req.Arguments.FrameId)
		return false, s.send(resp)
	case *dap.VariablesRequest:
		return false, s.onVariables(req)
	case *dap.EvaluateRequest:
		resp := &dap.EvaluateResponse{Response: *newResponse(req.Seq, req.Command)}
		return false, s.send(resp)
	case *dap.CompletionsRequest:
		resp := &dap.CompletionsResponse{Response: *newResponse(req.Seq, req.Command)}
		resp.Body.Targets = []dap.CompletionItem{}
		return false, s.send(resp)
	case *dap.RestartRequest:
		s.stopped = false
		resp := &dap.RestartResponse{Response: *newResponse(req.Seq, req.Command)}
		return false, s.send(resp)
	case *dap.DisconnectRequest:
		resp := &dap.DisconnectResponse{Response: *newResponse(req.Seq, req.Command)}
		return true, s.send(resp)
	case dap.RequestMessage:
		r := req.GetRequest()
		return false, s.send(newErrorResponse(r.Seq, r.Command, fmt.Sprintf("%s is not supported", r.Command)))
	default:
		log.Printf("Session %s: ignoring unexpected %T", s.ID, msg)
		return false, nil
	}
}

func (s *Session) onInitialize(req *dap.InitializeRequest) error {
	resp := &dap.InitializeResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.SupportsConfigurationDoneRequest = true
	resp.Body.SupportsCompletionsRequest = true
	resp.Body.SupportsRestartRequest = true

	s.setStatus(types.SessionStatusConfiguring)

	if err := s.send(&dap.InitializedEvent{Event: *newEvent("initialized")}); err != nil {
		return err
	}
	return s.send(resp)
}

func (s *Session) onSetBreakpoints(req *dap.SetBreakpointsRequest) error {
	lines := req.Arguments.Lines
	if len(req.Arguments.Breakpoints) > 0 {
		lines = make([]int, len(req.Arguments.Breakpoints))
		for i, bp := range req.Arguments.Breakpoints {
			lines[i] = bp.Line
		}
	}

	breakpoints := s.breakpoints.Set(s.sourceMap, req.Arguments.Source, lines)

	s.mu.Lock()
	s.bpFiles = s.breakpoints.Len()
	s.mu.Unlock()

	resp := &dap.SetBreakpointsResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Breakpoints = breakpoints
	return s.send(resp)
}

func (s *Session) onThreads(req *dap.ThreadsRequest) error {
	if !s.stopped {
		// content may have been reloaded since the breakpoints were set
		s.breakpoints.Refresh(s.sourceMap)
		s.snap = snapshot.Build(s.hostFn(), s.breakpoints, &s.ids)
		s.stopped = true
		s.setStatus(types.SessionStatusStopped)

		event := &dap.StoppedEvent{Event: *newEvent("stopped")}
		event.Body.Reason = "entry"
		event.Body.Description = StoppedDescription
		event.Body.ThreadId = s.snap.Threads[0].Id
		event.Body.AllThreadsStopped = true
		event.Body.PreserveFocusHint = true
		if err := s.send(event); err != nil {
			return err
		}
	}

	resp := &dap.ThreadsResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Threads = s.snap.Threads
	return s.send(resp)
}

func (s *Session) onStackTrace(req *dap.StackTraceRequest) error {
	frames := s.snap.StackFrames(req.Arguments.ThreadId)
	total := len(frames)

	start := min(max(req.Arguments.StartFrame, 0), total)
	end := total
	if req.Arguments.Levels > 0 {
		end = min(start+req.Arguments.Levels, total)
	}

	resp := &dap.StackTraceResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.StackFrames = frames[start:end]
	resp.Body.TotalFrames = total
	return s.send(resp)
}

func (s *Session) onVariables(req *dap.VariablesRequest) error {
	vars := s.snap.VariablesFor(req.Arguments.VariablesReference)

	start := min(max(req.Arguments.Start, 0), len(vars))
	end := len(vars)
	if req.Arguments.Count > 0 {
		end = min(start+req.Arguments.Count, len(vars))
	}

	resp := &dap.VariablesResponse{Response: *newResponse(req.Seq, req.Command)}
	resp.Body.Variables = vars[start:end]
	return s.send(resp)
}

// Invalidate tells the client its variables are stale. It may be called from any
// goroutine; the session's snapshot is left untouched.
func (s *Session) Invalidate() error {
	event := &dap.InvalidatedEvent{Event: *newEvent("invalidated")}
	event.Body.Areas = []dap.InvalidatedAreas{"variables"}
	if err := s.send(event); err != nil {
		return errors.TransportFailed(s.ID, err)
	}

	s.mu.Lock()
	s.invalidations++
	s.mu.Unlock()
	return nil
}

// Info returns a point-in-time description of the session.
func (s *Session) Info() types.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.SessionInfo{
		SessionID:       s.ID,
		Status:          s.status,
		RemoteAddr:      s.RemoteAddr,
		BreakpointFiles: s.bpFiles,
		Invalidations:   s.invalidations,
		ConnectedAt:     s.CreatedAt,
	}
}

// Close closes the connection, which ends Serve.
func (s *Session) Close() error {
	return s.transport.Close()
}

func (s *Session) setStatus(status types.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) send(msg dap.Message) error {
	return s.transport.Send(msg)
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Type: "event"},
		Event:           event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		Command:         command,
		RequestSeq:      requestSeq,
		Success:         true,
	}
}

func newErrorResponse(requestSeq int, command, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = "unsupported"
	er.Body.Error = &dap.ErrorMessage{Id: 1, Format: message}
	return er
}
