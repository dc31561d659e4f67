package dap

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/sinz/cp-debugger/internal/snapshot"
	"github.com/sinz/cp-debugger/pkg/types"
)

const requestTimeout = 10 * time.Second

// Client provides a high-level API for DAP operations
type Client struct {
	transport *Transport

	// Response handling
	pendingRequests map[int]chan dap.Message
	mu              sync.Mutex

	// Events in arrival order
	events   []dap.EventMessage
	eventsMu sync.Mutex
	eventsCh chan struct{}

	// Capabilities from initialize response
	capabilities dap.Capabilities

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Dial connects a client to a debug adapter listening on address.
func Dial(address string) (*Client, error) {
	transport, err := NewTCPTransport(address)
	if err != nil {
		return nil, err
	}
	return NewClient(transport), nil
}

// NewClient creates a new DAP client with the given transport
func NewClient(transport *Transport) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport:       transport,
		pendingRequests: make(map[int]chan dap.Message),
		eventsCh:        make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}

	// Start the message reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	return c
}

// readLoop continuously reads messages from the transport
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		msg, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("DAP client: read loop stopped: %v", err)
			}
			c.cancel()
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage routes incoming messages to the appropriate handler
func (c *Client) handleMessage(msg dap.Message) {
	switch m := msg.(type) {
	case dap.ResponseMessage:
		requestSeq := m.GetResponse().RequestSeq
		c.mu.Lock()
		if ch, ok := c.pendingRequests[requestSeq]; ok {
			ch <- msg
			delete(c.pendingRequests, requestSeq)
		}
		c.mu.Unlock()
	case dap.EventMessage:
		c.eventsMu.Lock()
		c.events = append(c.events, m)
		close(c.eventsCh)
		c.eventsCh = make(chan struct{})
		c.eventsMu.Unlock()
	default:
		log.Printf("DAP client: ignoring unexpected %T", msg)
	}
}

// sendRequest sends a request and waits for the response
func (c *Client) sendRequest(req dap.RequestMessage) (dap.Message, error) {
	seq := c.transport.NextSeq()
	req.GetRequest().Seq = seq

	// Create response channel
	respCh := make(chan dap.Message, 1)
	c.mu.Lock()
	c.pendingRequests[seq] = respCh
	c.mu.Unlock()

	// Send the request
	if err := c.transport.Send(req); err != nil {
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, err
	}

	// Wait for response
	select {
	case resp := <-respCh:
		if r, ok := resp.(dap.ResponseMessage); ok && !r.GetResponse().Success {
			return nil, fmt.Errorf("%s request failed: %s", req.GetRequest().Command, r.GetResponse().Message)
		}
		return resp, nil
	case <-time.After(requestTimeout):
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, fmt.Errorf("request timeout")
	case <-c.ctx.Done():
		return nil, fmt.Errorf("connection closed")
	}
}

func newRequest(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}

// Initialize sends the initialize request
func (c *Client) Initialize(clientID string) (*dap.InitializeResponse, error) {
	req := &dap.InitializeRequest{
		Request: newRequest("initialize"),
		Arguments: dap.InitializeRequestArguments{
			ClientID:        clientID,
			AdapterID:       "cp-debugger",
			Locale:          "en-US",
			LinesStartAt1:   true,
			ColumnsStartAt1: true,
			PathFormat:      "path",
		},
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	initResp, ok := resp.(*dap.InitializeResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}

	c.capabilities = initResp.Body
	return initResp, nil
}

// ConfigurationDone signals the end of the configuration sequence
func (c *Client) ConfigurationDone() error {
	_, err := c.sendRequest(&dap.ConfigurationDoneRequest{Request: newRequest("configurationDone")})
	return err
}

// SetBreakpoints replaces the breakpoints of source with the given lines
func (c *Client) SetBreakpoints(source dap.Source, lines []int) ([]dap.Breakpoint, error) {
	bps := make([]dap.SourceBreakpoint, len(lines))
	for i, line := range lines {
		bps[i] = dap.SourceBreakpoint{Line: line}
	}

	req := &dap.SetBreakpointsRequest{
		Request: newRequest("setBreakpoints"),
		Arguments: dap.SetBreakpointsArguments{
			Source:      source,
			Breakpoints: bps,
		},
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	bpResp, ok := resp.(*dap.SetBreakpointsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	return bpResp.Body.Breakpoints, nil
}

// Threads gets all threads
func (c *Client) Threads() ([]dap.Thread, error) {
	resp, err := c.sendRequest(&dap.ThreadsRequest{Request: newRequest("threads")})
	if err != nil {
		return nil, err
	}

	threadsResp, ok := resp.(*dap.ThreadsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	return threadsResp.Body.Threads, nil
}

// StackTrace gets every stack frame of a thread
func (c *Client) StackTrace(threadID int) ([]dap.StackFrame, error) {
	req := &dap.StackTraceRequest{
		Request:   newRequest("stackTrace"),
		Arguments: dap.StackTraceArguments{ThreadId: threadID},
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	stackResp, ok := resp.(*dap.StackTraceResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	return stackResp.Body.StackFrames, nil
}

// Scopes gets the scopes for a stack frame
func (c *Client) Scopes(frameID int) ([]dap.Scope, error) {
	req := &dap.ScopesRequest{
		Request:   newRequest("scopes"),
		Arguments: dap.ScopesArguments{FrameId: frameID},
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	scopesResp, ok := resp.(*dap.ScopesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	return scopesResp.Body.Scopes, nil
}

// Variables gets the variables of a container
func (c *Client) Variables(variablesRef int) ([]dap.Variable, error) {
	req := &dap.VariablesRequest{
		Request:   newRequest("variables"),
		Arguments: dap.VariablesArguments{VariablesReference: variablesRef},
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	varsResp, ok := resp.(*dap.VariablesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	return varsResp.Body.Variables, nil
}

// Restart asks the adapter to rebuild its snapshot on the next threads request
func (c *Client) Restart() error {
	_, err := c.sendRequest(&dap.RestartRequest{Request: newRequest("restart")})
	return err
}

// Disconnect ends the debug session
func (c *Client) Disconnect() error {
	req := &dap.DisconnectRequest{
		Request:   newRequest("disconnect"),
		Arguments: &dap.DisconnectArguments{},
	}
	_, err := c.sendRequest(req)
	return err
}

// Capabilities returns the capabilities from the initialize response
func (c *Client) Capabilities() dap.Capabilities {
	return c.capabilities
}

// Events returns the events received so far, in arrival order.
func (c *Client) Events() []dap.EventMessage {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	return append([]dap.EventMessage(nil), c.events...)
}

// CountEvents returns how many events named event were received so far.
func (c *Client) CountEvents(event string) int {
	n := 0
	for _, e := range c.Events() {
		if e.GetEvent().Event == event {
			n++
		}
	}
	return n
}

// WaitForEvent waits until an event named event has been received, including one
// received before the call.
func (c *Client) WaitForEvent(event string, timeout time.Duration) (dap.EventMessage, error) {
	deadline := time.After(timeout)
	for {
		c.eventsMu.Lock()
		for _, e := range c.events {
			if e.GetEvent().Event == event {
				c.eventsMu.Unlock()
				return e, nil
			}
		}
		ch := c.eventsCh
		c.eventsMu.Unlock()

		select {
		case <-ch:
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for %s event", event)
		case <-c.ctx.Done():
			return nil, fmt.Errorf("connection closed while waiting for %s event", event)
		}
	}
}

// Dump walks every thread, frame, scope and variable container reachable from the
// threads request.
func (c *Client) Dump() (types.DebugSnapshot, error) {
	view := types.DebugSnapshot{
		Stacks:    make(map[int][]types.StackFrame),
		Scopes:    make(map[int][]types.Scope),
		Variables: make(map[int][]types.Variable),
	}

	threads, err := c.Threads()
	if err != nil {
		return view, err
	}

	var pending []int
	for _, t := range threads {
		view.Threads = append(view.Threads, types.ThreadInfo{ID: t.Id, Name: t.Name})

		frames, err := c.StackTrace(t.Id)
		if err != nil {
			return view, err
		}
		for _, f := range frames {
			view.Stacks[t.Id] = append(view.Stacks[t.Id], snapshot.FrameInfo(f))

			scopes, err := c.Scopes(f.Id)
			if err != nil {
				return view, err
			}
			for _, sc := range scopes {
				view.Scopes[f.Id] = append(view.Scopes[f.Id], types.Scope{Name: sc.Name, VariablesReference: sc.VariablesReference})
				pending = append(pending, sc.VariablesReference)
			}
		}
	}

	for len(pending) > 0 {
		ref := pending[0]
		pending = pending[1:]
		if _, seen := view.Variables[ref]; seen || ref == 0 {
			continue
		}

		vars, err := c.Variables(ref)
		if err != nil {
			return view, err
		}
		out := make([]types.Variable, len(vars))
		for i, v := range vars {
			out[i] = types.Variable{Name: v.Name, Value: v.Value, VariablesReference: v.VariablesReference}
			if v.VariablesReference != 0 {
				pending = append(pending, v.VariablesReference)
			}
		}
		view.Variables[ref] = out
	}

	return view, nil
}

// Close shuts down the client
func (c *Client) Close() error {
	c.cancel()
	err := c.transport.Close()
	c.wg.Wait()
	return err
}
