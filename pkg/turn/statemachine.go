package turn

import (
	"fmt"
	"sync"
	"time"
)

// State is one of the five turn-taking states (§4.1).
type State string

const (
	StateIdle        State = "IDLE"
	StateListening   State = "LISTENING"
	StateSpeculative State = "SPECULATIVE"
	StateCommitted   State = "COMMITTED"
	StateSpeaking    State = "SPEAKING"
)

// allowed holds the transition table of §4.1. A transition not present
// here fails with ErrInvalidStateTransition.
var allowed = map[State]map[State]bool{
	StateIdle:        {StateListening: true},
	StateListening:   {StateListening: true, StateSpeculative: true},
	StateSpeculative: {StateListening: true, StateCommitted: true},
	StateCommitted:   {StateSpeaking: true, StateListening: true},
	StateSpeaking:    {StateListening: true, StateIdle: true},
}

// StateChange is what StateMachine.Transition emits on success, in
// transition order (§5's ordering guarantee).
type StateChange struct {
	From      State
	To        State
	Timestamp time.Time
}

// StateMachine is C1: the 5-state FSM with transition guards and
// enter/exit hooks. It is not safe to share across sessions; one
// instance guards exactly one Session/TurnController, serialized the
// way §5 requires (single actor, or a session-scoped mutex — here, the
// latter).
type StateMachine struct {
	mu      sync.Mutex
	current State

	// onEnter/onExit hooks let TurnController react to transitions
	// without StateMachine knowing about sentences, TTS, or cancellation.
	onEnter map[State][]func(from State)
	onExit  map[State][]func(to State)
}

// NewStateMachine starts in IDLE, per §3's Session lifecycle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		onEnter: make(map[State][]func(from State)),
		onExit:  make(map[State][]func(to State)),
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// OnEnter registers a hook run (outside the lock) whenever the machine
// enters `s`. Multiple hooks for the same state run in registration order.
func (sm *StateMachine) OnEnter(s State, fn func(from State)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onEnter[s] = append(sm.onEnter[s], fn)
}

// OnExit registers a hook run (outside the lock) whenever the machine
// leaves `s`.
func (sm *StateMachine) OnExit(s State, fn func(to State)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onExit[s] = append(sm.onExit[s], fn)
}

// Transition attempts from->to. It is idempotent in the sense required by
// §8: calling it twice with the same (from, to) either both succeed or
// both fail, since the guard only depends on the static table plus the
// machine's actual current state.
func (sm *StateMachine) Transition(to State) (StateChange, error) {
	sm.mu.Lock()
	from := sm.current
	if to == StateIdle {
		// "any -> IDLE" is always allowed (fatal error path / teardown).
	} else if !allowed[from][to] {
		sm.mu.Unlock()
		return StateChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
	}
	sm.current = to
	exitHooks := append([]func(to State){}, sm.onExit[from]...)
	enterHooks := append([]func(from State){}, sm.onEnter[to]...)
	sm.mu.Unlock()

	for _, h := range exitHooks {
		h(to)
	}
	for _, h := range enterHooks {
		h(from)
	}

	return StateChange{From: from, To: to, Timestamp: time.Now()}, nil
}

// MustIdle forces a transition to IDLE unconditionally, used for the
// fatal error / session teardown path of §4.1's "any -> IDLE" row.
func (sm *StateMachine) MustIdle() StateChange {
	sc, _ := sm.Transition(StateIdle)
	return sc
}
