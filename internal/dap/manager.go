package dap

import (
	"context"
	"log"
	"net"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/sourcemap"
)

// SessionManager accepts debugger connections and tracks the live sessions.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	sourceMap   *sourcemap.SourceMap
	hostFn      HostProvider
	maxSessions int

	listener net.Listener
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager creates a new session manager. A maxSessions of zero means no limit.
func NewSessionManager(sm *sourcemap.SourceMap, hostFn HostProvider, maxSessions int) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		sessions:    make(map[string]*Session),
		sourceMap:   sm,
		hostFn:      hostFn,
		maxSessions: maxSessions,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start binds addr and accepts connections in the background. If the accept loop
// fails it is not restarted.
func (sm *SessionManager) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.ListenFailed(addr, err)
	}

	sm.mu.Lock()
	sm.listener = listener
	sm.mu.Unlock()

	log.Printf("Debug adapter listening on %s", listener.Addr())

	sm.wg.Add(1)
	go sm.acceptLoop(listener)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (sm *SessionManager) Addr() net.Addr {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.listener == nil {
		return nil
	}
	return sm.listener.Addr()
}

func (sm *SessionManager) acceptLoop(listener net.Listener) {
	defer sm.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-sm.ctx.Done():
				return
			default:
			}
			log.Printf("Error: debug adapter listener stopped: %v", errors.ListenFailed(listener.Addr().String(), err))
			return
		}

		session, err := sm.register(conn)
		if err != nil {
			log.Printf("Warning: rejecting connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		sm.wg.Add(1)
		go sm.serve(session)
	}
}

func (sm *SessionManager) register(conn net.Conn) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return nil, errors.SessionLimitReached(sm.maxSessions)
	}

	session := NewSession(uuid.New().String(), NewConnTransport(conn), sm.sourceMap, sm.hostFn)
	session.RemoteAddr = conn.RemoteAddr().String()
	sm.sessions[session.ID] = session

	log.Printf("Session %s connected from %s", session.ID, session.RemoteAddr)
	return session, nil
}

// serve runs one session to completion. Failures end only this session.
func (sm *SessionManager) serve(session *Session) {
	defer sm.wg.Done()
	defer sm.remove(session.ID)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error: session %s panicked: %v\n%s", session.ID, r, debug.Stack())
		}
	}()

	if err := session.Serve(); err != nil {
		log.Printf("Error: %v\n%s", err, debug.Stack())
	}
}

func (sm *SessionManager) remove(id string) {
	sm.mu.Lock()
	session, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if !ok {
		return
	}
	if err := session.Close(); err != nil {
		select {
		case <-sm.ctx.Done():
		default:
			log.Printf("Warning: failed to close session %s: %v", id, err)
		}
	}
	log.Printf("Session %s disconnected", id)
}

// GetSession retrieves a session by ID
func (sm *SessionManager) GetSession(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, ok := sm.sessions[id]
	if !ok {
		return nil, errors.SessionNotFound(id)
	}

	return session, nil
}

// ListSessions returns all live sessions, oldest first.
func (sm *SessionManager) ListSessions() []*Session {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}
	sm.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// InvalidateAll asks every live session to tell its client the variables are stale.
// It returns the number of sessions notified.
func (sm *SessionManager) InvalidateAll() int {
	notified := 0
	for _, session := range sm.ListSessions() {
		if err := session.Invalidate(); err != nil {
			log.Printf("Warning: failed to invalidate session %s: %v", session.ID, err)
			continue
		}
		notified++
	}
	return notified
}

// Close stops the listener and closes every live session.
func (sm *SessionManager) Close() {
	sm.cancel()

	sm.mu.Lock()
	if sm.listener != nil {
		if err := sm.listener.Close(); err != nil {
			log.Printf("Warning: failed to close listener: %v", err)
		}
	}
	for _, session := range sm.sessions {
		session.Close()
	}
	sm.mu.Unlock()

	sm.wg.Wait()
}
