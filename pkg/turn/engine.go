package turn

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the process-scoped container that owns shared adapter
// connections and spins up one Controller per client connection,
// holding the shared STT/LLM/TTS/RAG/Store providers behind a single
// struct and producing one Controller per caller.
type Engine struct {
	mu sync.RWMutex

	adapters Adapters
	cfg      Config
	logger   Logger
	registry prometheus.Registerer

	sessions map[string]*Controller
}

// NewEngine constructs an Engine with shared adapters and a default
// config applied to every new session. registry may be nil to disable
// Prometheus registration (e.g. in unit tests); logger may be nil.
func NewEngine(adapters Adapters, cfg Config, registry prometheus.Registerer, logger Logger) (*Engine, error) {
	if adapters.STT == nil || adapters.LLM == nil || adapters.TTS == nil {
		return nil, fmt.Errorf("turn: %w", ErrNilProvider)
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Engine{
		adapters: adapters,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		sessions: make(map[string]*Controller),
	}, nil
}

// NewSession creates and starts a Controller for a new client connection
// (the `connect` message's effect, §6.1). The returned Controller's
// Events() channel must be drained by the caller's transport.
func (e *Engine) NewSession(sessionID string) (*Controller, error) {
	e.mu.Lock()
	if _, exists := e.sessions[sessionID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("turn: session %q already exists", sessionID)
	}
	ctrl := NewController(sessionID, e.cfg, e.adapters, e.registry, e.logger)
	e.sessions[sessionID] = ctrl
	e.mu.Unlock()

	if err := ctrl.Start(); err != nil {
		e.mu.Lock()
		delete(e.sessions, sessionID)
		e.mu.Unlock()
		return nil, err
	}
	return ctrl, nil
}

// Session returns the live Controller for sessionID, if any.
func (e *Engine) Session(sessionID string) (*Controller, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.sessions[sessionID]
	return c, ok
}

// CloseSession tears down and forgets one session (the `disconnect`
// message's effect, §6.1/§4.7.1).
func (e *Engine) CloseSession(sessionID string) {
	e.mu.Lock()
	ctrl, ok := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()
	if ok {
		ctrl.Close()
	}
}

// SessionCount returns the number of live sessions.
func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown closes every live session, for process teardown.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	sessions := make([]*Controller, 0, len(e.sessions))
	for id, c := range e.sessions {
		sessions = append(sessions, c)
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	for _, c := range sessions {
		c.Close()
	}
}
